package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"signature-service/internal/invitation/metrics"
	"signature-service/internal/invitation/models"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/circuit"
	"signature-service/pkg/platform/sentinel"
	"signature-service/pkg/platform/tx"
	"signature-service/pkg/requestcontext"
)

// DefaultTTL applies when no TTL option is given.
const DefaultTTL = 7 * 24 * time.Hour

type Store interface {
	Create(ctx context.Context, token *models.Token) error
	FindByHash(ctx context.Context, hash string) (*models.Token, error)
	FindLiveBySigner(ctx context.Context, signerID id.SignerID) (*models.Token, error)
	RecordView(ctx context.Context, hash string, now time.Time) (*models.Token, error)
	Consume(ctx context.Context, hash string, now time.Time) (*models.Token, error)
	RevokeLiveForSigner(ctx context.Context, signerID id.SignerID, reason string, now time.Time) ([]*models.Token, error)
	RevokeForEnvelope(ctx context.Context, envelopeID id.EnvelopeID, reason string, now time.Time) ([]*models.Token, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RevocationList is the shared fast-path lookup for revoked token hashes.
type RevocationList interface {
	RevokeMany(ctx context.Context, keys []string, ttl time.Duration) error
	IsRevoked(ctx context.Context, key string) (bool, error)
}

// Service issues and redeems invitation tokens for external signers.
type Service struct {
	store       Store
	revocations RevocationList
	breaker     *circuit.Breaker
	ttl         time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithRevocationList(list RevocationList) Option {
	return func(s *Service) {
		s.revocations = list
	}
}

// WithBreaker skips the revocation list while it keeps failing.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue revokes any live token for the signer and creates a fresh one.
// The plaintext in the result is never stored.
func (s *Service) Issue(ctx context.Context, envelopeID id.EnvelopeID, signerID id.SignerID, envelopeExpiry *time.Time, now time.Time) (*models.Issued, error) {
	if _, err := s.revoke(ctx, models.ReasonReissued, now, func(ctx context.Context) ([]*models.Token, error) {
		return s.store.RevokeLiveForSigner(ctx, signerID, models.ReasonReissued, now)
	}); err != nil {
		return nil, err
	}

	plaintext, hash, err := models.Generate()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate invitation")
	}
	token, err := models.NewToken(id.InvitationTokenID(uuid.New()), envelopeID, signerID, hash, s.ttl, envelopeExpiry, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, token); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "signer already has a live invitation")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store invitation")
	}

	s.logAudit(ctx, "invitation_issued",
		"envelope_id", envelopeID.String(),
		"signer_id", signerID.String(),
		"invitation_id", token.ID.String(),
		"expires_at", token.ExpiresAt,
	)
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	return &models.Issued{Token: token, Plaintext: plaintext}, nil
}

// Resolve looks up a plaintext token without changing it.
func (s *Service) Resolve(ctx context.Context, plaintext string, now time.Time) (*models.Token, error) {
	hash, err := s.checkPlaintext(ctx, plaintext)
	if err != nil {
		return nil, err
	}
	token, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, s.translate(err)
	}
	if err := token.ValidateForUse(now); err != nil {
		s.recordOutcome(err)
		return nil, err
	}
	s.recordOutcome(nil)
	return token, nil
}

// MarkViewed validates the token and counts a view.
func (s *Service) MarkViewed(ctx context.Context, plaintext string, now time.Time) (*models.Token, error) {
	hash, err := s.checkPlaintext(ctx, plaintext)
	if err != nil {
		return nil, err
	}
	token, err := s.store.RecordView(ctx, hash, now)
	if err != nil {
		return nil, s.translate(err)
	}
	s.recordOutcome(nil)
	return token, nil
}

// Consume spends a single-use token. A second call fails with CodeGone.
func (s *Service) Consume(ctx context.Context, plaintext string, now time.Time) (*models.Token, error) {
	hash, err := s.checkPlaintext(ctx, plaintext)
	if err != nil {
		return nil, err
	}
	token, err := s.store.Consume(ctx, hash, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) && token != nil {
			s.logAudit(ctx, "invitation_replay_detected",
				"envelope_id", token.EnvelopeID.String(),
				"signer_id", token.SignerID.String(),
				"invitation_id", token.ID.String(),
			)
		}
		return nil, s.translate(err)
	}
	s.logAudit(ctx, "invitation_consumed",
		"envelope_id", token.EnvelopeID.String(),
		"signer_id", token.SignerID.String(),
		"invitation_id", token.ID.String(),
	)
	return token, nil
}

// RevokeForSigner revokes the signer's live token, if any.
func (s *Service) RevokeForSigner(ctx context.Context, signerID id.SignerID, reason string, now time.Time) (int, error) {
	return s.revoke(ctx, reason, now, func(ctx context.Context) ([]*models.Token, error) {
		return s.store.RevokeLiveForSigner(ctx, signerID, reason, now)
	})
}

// RevokeForEnvelope revokes every live token of an envelope.
func (s *Service) RevokeForEnvelope(ctx context.Context, envelopeID id.EnvelopeID, reason string, now time.Time) (int, error) {
	return s.revoke(ctx, reason, now, func(ctx context.Context) ([]*models.Token, error) {
		return s.store.RevokeForEnvelope(ctx, envelopeID, reason, now)
	})
}

// DeleteExpired purges tokens that expired without being used.
func (s *Service) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := s.store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete expired invitations")
	}
	return n, nil
}

func (s *Service) revoke(ctx context.Context, reason string, now time.Time, fn func(context.Context) ([]*models.Token, error)) (int, error) {
	revoked, err := fn(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke invitations")
	}
	if len(revoked) == 0 {
		return 0, nil
	}

	if s.revocations != nil {
		hashes := make([]string, 0, len(revoked))
		var ttl time.Duration
		for _, t := range revoked {
			hashes = append(hashes, t.TokenHash)
			if remaining := t.ExpiresAt.Sub(now); remaining > ttl {
				ttl = remaining
			}
		}
		if ttl > 0 {
			// The list cannot join the transaction, so it only learns about
			// revocations that committed.
			tx.AfterCommit(ctx, func(ctx context.Context) {
				if err := s.revocations.RevokeMany(ctx, hashes, ttl); err != nil && s.logger != nil {
					s.logger.WarnContext(ctx, "failed to publish invitation revocations",
						"error", err,
						"count", len(hashes),
					)
				}
			})
		}
	}

	for _, t := range revoked {
		s.logAudit(ctx, "invitation_revoked",
			"envelope_id", t.EnvelopeID.String(),
			"signer_id", t.SignerID.String(),
			"invitation_id", t.ID.String(),
			"reason", reason,
		)
	}
	if s.metrics != nil {
		s.metrics.AddRevoked(reason, len(revoked))
	}
	return len(revoked), nil
}

func (s *Service) checkPlaintext(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invitation token required")
	}
	hash := models.Hash(plaintext)
	if s.revocations == nil {
		return hash, nil
	}
	if s.breaker != nil && !s.breaker.Allow() {
		return hash, nil
	}
	revoked, err := s.revocations.IsRevoked(ctx, hash)
	if err != nil {
		s.recordBreaker(ctx, err)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "invitation revocation check failed, falling back to store",
				"error", err,
			)
		}
		return hash, nil
	}
	s.recordBreaker(ctx, nil)
	if revoked {
		s.recordOutcome(sentinel.ErrRevoked)
		return "", dErrors.New(dErrors.CodeGone, "invitation revoked")
	}
	return hash, nil
}

func (s *Service) recordBreaker(ctx context.Context, err error) {
	if s.breaker == nil {
		return
	}
	var change circuit.StateChange
	if err != nil {
		_, change = s.breaker.RecordFailure()
	} else {
		_, change = s.breaker.RecordSuccess()
	}
	if s.logger == nil {
		return
	}
	if change.Opened {
		s.logger.WarnContext(ctx, "revocation list circuit opened", "breaker", s.breaker.Name())
	}
	if change.Closed {
		s.logger.InfoContext(ctx, "revocation list circuit closed", "breaker", s.breaker.Name())
	}
}

// translate maps store sentinels to client-facing errors.
func (s *Service) translate(err error) error {
	s.recordOutcome(err)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "invitation not found")
	case errors.Is(err, sentinel.ErrRevoked):
		return dErrors.New(dErrors.CodeGone, "invitation revoked")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeGone, "invitation already used")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeGone, "invitation expired")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation")
	}
}

func (s *Service) recordOutcome(err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, sentinel.ErrNotFound):
		outcome = "not_found"
	case errors.Is(err, sentinel.ErrRevoked):
		outcome = "revoked"
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		outcome = "used"
	case errors.Is(err, sentinel.ErrExpired):
		outcome = "expired"
	case dErrors.HasCode(err, dErrors.CodeGone):
		outcome = "gone"
	default:
		outcome = "error"
	}
	s.metrics.IncrementResolved(outcome)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
