// Package admin guards operator endpoints such as the outbox dead-letter
// queue behind a shared token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/httputil"
	request "signature-service/pkg/platform/middleware/request"
)

const headerAdminToken = "X-Admin-Token"

var (
	errDisabled     = dErrors.New(dErrors.CodeForbidden, "admin api disabled")
	errTokenMissing = dErrors.New(dErrors.CodeUnauthorized, "admin token required")
)

// RequireAdminToken rejects requests whose X-Admin-Token does not match
// expected. With no token configured the routes answer 403.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				httputil.WriteError(w, errDisabled)
				return
			}
			got := []byte(r.Header.Get(headerAdminToken))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				logger.WarnContext(r.Context(), "rejected admin request",
					"request_id", request.GetRequestID(r.Context()),
					"path", r.URL.Path,
					"token_present", len(got) > 0,
				)
				httputil.WriteError(w, errTokenMissing)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
