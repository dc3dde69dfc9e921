// Package requesttime fixes the clock for the lifetime of a request, so
// signedAt, outbox createdAt and token expiry checks all see the same instant.
package requesttime

import (
	"net/http"
	"time"

	"signature-service/pkg/requestcontext"
)

// Middleware stores the UTC arrival time. Handlers read it back through
// requestcontext.Now, which falls back to time.Now outside a request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived := time.Now().UTC()
		next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), arrived)))
	})
}
