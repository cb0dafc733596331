package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, PerPage: 20, Offset: 0}},
		{"?page=3&per_page=10", Params{Page: 3, PerPage: 10, Offset: 20}},
		{"?page=0&per_page=-5", Params{Page: 1, PerPage: 20, Offset: 0}},
		{"?page=abc", Params{Page: 1, PerPage: 20, Offset: 0}},
		{"?page=2&per_page=500", Params{Page: 2, PerPage: 100, Offset: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/intervals"+tt.query, nil)
			assert.Equal(t, tt.want, FromRequest(r))
		})
	}
}
