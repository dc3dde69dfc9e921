package testutil

import (
	"net/http"

	id "signature-service/pkg/domain"
	"signature-service/pkg/requestcontext"
)

// WithOwner puts the tenant and user into the request context the way
// RequireAuth does after validating a token.
func WithOwner(req *http.Request, tenantID id.TenantID, userID id.UserID) *http.Request {
	ctx := requestcontext.WithUserID(req.Context(), userID)
	ctx = requestcontext.WithTenantID(ctx, tenantID)
	return req.WithContext(ctx)
}

// FakeAuth stands in for RequireAuth in handler tests. Requests without an
// Authorization header get a bare 401; all others act as the given owner.
func FakeAuth(tenantID id.TenantID, userID id.UserID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, WithOwner(r, tenantID, userID))
		})
	}
}
