package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	tests := []struct {
		name     string
		expected string
		header   string
		want     int
	}{
		{name: "disabled when no token configured", expected: "", header: "anything", want: http.StatusForbidden},
		{name: "missing header", expected: "s3cret", header: "", want: http.StatusUnauthorized},
		{name: "wrong token", expected: "s3cret", header: "guess", want: http.StatusUnauthorized},
		{name: "matching token", expected: "s3cret", header: "s3cret", want: http.StatusTeapot},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/outbox/dead", nil)
			if tc.header != "" {
				req.Header.Set(headerAdminToken, tc.header)
			}
			rec := httptest.NewRecorder()
			RequireAdminToken(tc.expected, logger)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
