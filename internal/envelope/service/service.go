// Package service runs the envelope lifecycle: drafting, sending, routing
// signatures in order and ending envelopes. Every state change and its
// outbox events commit in one unit of work.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"signature-service/internal/document"
	"signature-service/internal/envelope/metrics"
	"signature-service/internal/envelope/models"
	invitationModels "signature-service/internal/invitation/models"
	outboxModels "signature-service/internal/outbox/models"
	"signature-service/internal/sealing"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/audit"
	"signature-service/pkg/platform/sentinel"
	"signature-service/pkg/platform/tx"
	"signature-service/pkg/requestcontext"
)

var tracer = otel.Tracer("signature-service/envelope")

type Store interface {
	Create(ctx context.Context, e *models.Envelope) error
	FindByID(ctx context.Context, envelopeID id.EnvelopeID) (*models.Envelope, error)
	ListByOwner(ctx context.Context, tenantID id.TenantID, ownerID id.UserID, filter models.ListFilter) ([]*models.Envelope, error)
	Update(ctx context.Context, e *models.Envelope) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]id.EnvelopeID, error)
}

type Outbox interface {
	Append(ctx context.Context, event *outboxModels.Event) error
}

type Invitations interface {
	Issue(ctx context.Context, envelopeID id.EnvelopeID, signerID id.SignerID, envelopeExpiry *time.Time, now time.Time) (*invitationModels.Issued, error)
	Resolve(ctx context.Context, plaintext string, now time.Time) (*invitationModels.Token, error)
	MarkViewed(ctx context.Context, plaintext string, now time.Time) (*invitationModels.Token, error)
	Consume(ctx context.Context, plaintext string, now time.Time) (*invitationModels.Token, error)
	RevokeForSigner(ctx context.Context, signerID id.SignerID, reason string, now time.Time) (int, error)
	RevokeForEnvelope(ctx context.Context, envelopeID id.EnvelopeID, reason string, now time.Time) (int, error)
}

// AuditTrail records one entry per outbox event, in the same unit of work.
type AuditTrail interface {
	Append(ctx context.Context, event audit.Event) error
	ListByEnvelope(ctx context.Context, envelopeID id.EnvelopeID) ([]audit.Event, error)
}

// Owner identifies the authenticated caller managing envelopes.
type Owner struct {
	TenantID id.TenantID
	UserID   id.UserID
}

// ClientInfo is the request metadata recorded as signature evidence.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type Service struct {
	store       Store
	outbox      Outbox
	invitations Invitations
	blobs       document.BlobStore
	sealer      sealing.Sealer
	audit       AuditTrail
	tx          tx.Runner
	logger      *slog.Logger
	metrics     *metrics.Metrics
	urlTTL      time.Duration
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

func WithTxRunner(r tx.Runner) Option {
	return func(s *Service) {
		s.tx = r
	}
}

func WithAuditTrail(a AuditTrail) Option {
	return func(s *Service) {
		s.audit = a
	}
}

// WithURLTTL sets the lifetime of presigned document links.
func WithURLTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.urlTTL = d
		}
	}
}

func New(store Store, outbox Outbox, invitations Invitations, blobs document.BlobStore, sealer sealing.Sealer, opts ...Option) *Service {
	s := &Service{
		store:       store,
		outbox:      outbox,
		invitations: invitations,
		blobs:       blobs,
		sealer:      sealer,
		tx:          tx.NewMemoryRunner(),
		logger:      slog.New(slog.DiscardHandler),
		urlTTL:      document.DefaultURLTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadOwned returns the envelope only when owner manages it. Foreign
// envelopes read as not found.
func (s *Service) loadOwned(ctx context.Context, owner Owner, envelopeID id.EnvelopeID) (*models.Envelope, error) {
	e, err := s.store.FindByID(ctx, envelopeID)
	if err != nil {
		return nil, translateStore(err, "load envelope")
	}
	if !e.IsOwnedBy(owner.TenantID, owner.UserID) {
		return nil, dErrors.New(dErrors.CodeNotFound, "envelope not found")
	}
	return e, nil
}

func (s *Service) save(ctx context.Context, e *models.Envelope) error {
	if err := s.store.Update(ctx, e); err != nil {
		return translateStore(err, "save envelope")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, e *models.Envelope, eventType string, payload any, now time.Time) error {
	event, err := outboxModels.NewEvent(models.AggregateType, e.ID.String(), eventType, payload, now)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build event")
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record event")
	}
	return nil
}

func (s *Service) emitLifecycle(ctx context.Context, e *models.Envelope, eventType, reason string, signerID *id.SignerID, now time.Time) error {
	payload := models.NewEnvelopeEvent(e, now)
	payload.Reason = reason
	payload.SignerID = signerID
	if err := s.emit(ctx, e, eventType, payload, now); err != nil {
		return err
	}
	return s.recordAudit(ctx, e, eventType, reason, signerID, now)
}

// recordAudit appends to the audit trail when one is configured. The actor
// is the authenticated user, else the acting signer, else the system.
func (s *Service) recordAudit(ctx context.Context, e *models.Envelope, action, reason string, signerID *id.SignerID, now time.Time) error {
	if s.audit == nil {
		return nil
	}
	actor := audit.ActorSystem
	switch userID := requestcontext.UserID(ctx); {
	case !userID.IsNil():
		actor = audit.UserActor(userID)
	case signerID != nil && action != models.EventInvitationIssued:
		actor = audit.SignerActor(*signerID)
	}
	event := audit.Event{
		Category:   audit.AuditEvent(action).Category(),
		Timestamp:  now,
		TenantID:   e.TenantID,
		EnvelopeID: e.ID,
		SignerID:   signerID,
		Action:     action,
		ActorID:    actor,
		Reason:     reason,
		IPAddress:  requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		RequestID:  requestcontext.RequestID(ctx),
	}
	if err := s.audit.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

// inviteNext issues invitations to the external signers whose turn it is.
// The owner's own turn needs no invitation.
func (s *Service) inviteNext(ctx context.Context, e *models.Envelope, now time.Time) error {
	for _, signer := range e.NextSigners() {
		if !signer.IsExternal {
			continue
		}
		if err := s.invite(ctx, e, signer, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) invite(ctx context.Context, e *models.Envelope, signer *models.Signer, now time.Time) error {
	issued, err := s.invitations.Issue(ctx, e.ID, signer.ID, e.ExpiresAt, now)
	if err != nil {
		return err
	}
	err = s.emit(ctx, e, models.EventInvitationIssued, models.InvitationEvent{
		EnvelopeID:    e.ID,
		TenantID:      e.TenantID,
		SignerID:      signer.ID,
		InvitationID:  issued.Token.ID,
		Email:         signer.Email,
		FullName:      signer.FullName,
		EnvelopeTitle: e.Title,
		Token:         issued.Plaintext,
		ExpiresAt:     issued.Token.ExpiresAt,
		OccurredAt:    now,
	}, now)
	if err != nil {
		return err
	}
	return s.recordAudit(ctx, e, models.EventInvitationIssued, "", &signer.ID, now)
}

func (s *Service) startSpan(ctx context.Context, name string, envelopeID id.EnvelopeID) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, name)
	if !envelopeID.IsNil() {
		span.SetAttributes(attribute.String("envelope.id", envelopeID.String()))
	}
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		attributes = append(attributes, "trace_id", sc.TraceID().String())
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// translateStore maps store sentinels; coded errors pass through.
func translateStore(err error, action string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "envelope not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "envelope was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to "+action)
	}
}
