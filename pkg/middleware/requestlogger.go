package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/locagame/pkg/logger"
)

// ActorHeader identifies the back-office user or storefront client that
// issued the request. It is informational and never used for authorization.
const ActorHeader = "X-Actor-ID"

// RequestLogger stores a request-scoped logger enriched with correlation_id,
// actor_id, trace_id and span_id in the context. Mount it after
// RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if actor := r.Header.Get(ActorHeader); actor != "" {
				ctx = logger.WithActorID(ctx, actor)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
