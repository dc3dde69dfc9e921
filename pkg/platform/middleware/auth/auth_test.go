package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"signature-service/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) { return v.claims, v.err }

type stubRevocations struct {
	revoked bool
	err     error
}

func (s stubRevocations) IsRevoked(context.Context, string) (bool, error) { return s.revoked, s.err }

type RequireAuthSuite struct {
	suite.Suite
	logger *slog.Logger
	claims *JWTClaims
}

func TestRequireAuthSuite(t *testing.T) {
	suite.Run(t, new(RequireAuthSuite))
}

func (s *RequireAuthSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.claims = &JWTClaims{
		UserID:    uuid.NewString(),
		TenantID:  uuid.NewString(),
		SessionID: "sess-1",
		JTI:       "jti-1",
	}
}

func (s *RequireAuthSuite) serve(v JWTValidator, rc TokenRevocationChecker, header string) (*httptest.ResponseRecorder, context.Context) {
	var seen context.Context
	h := RequireAuth(v, rc, s.logger)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = r.Context()
	}))
	req := httptest.NewRequest(http.MethodGet, "/envelopes", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func (s *RequireAuthSuite) TestMissingHeader() {
	rec, ctx := s.serve(stubValidator{claims: s.claims}, nil, "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Nil(ctx)
}

func (s *RequireAuthSuite) TestInvalidToken() {
	rec, ctx := s.serve(stubValidator{err: errors.New("bad signature")}, nil, "Bearer x")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Nil(ctx)
}

func (s *RequireAuthSuite) TestMalformedTenantClaim() {
	s.claims.TenantID = "not-a-uuid"
	rec, _ := s.serve(stubValidator{claims: s.claims}, nil, "Bearer x")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RequireAuthSuite) TestRevokedToken() {
	rec, ctx := s.serve(stubValidator{claims: s.claims}, stubRevocations{revoked: true}, "Bearer x")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Body.String(), "revoked")
	s.Nil(ctx)
}

func (s *RequireAuthSuite) TestRevocationCheckFailure() {
	rec, _ := s.serve(stubValidator{claims: s.claims}, stubRevocations{err: errors.New("redis down")}, "Bearer x")
	s.Equal(http.StatusInternalServerError, rec.Code)
}

func (s *RequireAuthSuite) TestValidTokenPopulatesContext() {
	rec, ctx := s.serve(stubValidator{claims: s.claims}, stubRevocations{}, "Bearer x")
	s.Equal(http.StatusOK, rec.Code)
	s.Require().NotNil(ctx)
	assert.Equal(s.T(), s.claims.UserID, requestcontext.UserID(ctx).String())
	assert.Equal(s.T(), s.claims.TenantID, requestcontext.TenantID(ctx).String())
	assert.Equal(s.T(), "sess-1", requestcontext.SessionID(ctx))
}
