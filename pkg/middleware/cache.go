package middleware

import "net/http"

// NoStore marks GET and HEAD responses as uncacheable. Availability changes
// with every hold, so browsers and CDNs must not keep stale answers.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}
