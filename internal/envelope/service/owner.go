package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"signature-service/internal/document"
	"signature-service/internal/envelope/models"
	invitationModels "signature-service/internal/invitation/models"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/audit"
	"signature-service/pkg/requestcontext"
)

// CreateInput carries the fields of a new draft.
type CreateInput struct {
	Title        string
	Description  string
	SigningOrder models.SigningOrder
	ExpiresAt    *time.Time
}

// SignerInput describes a signer to add. A nil UserID makes the signer
// external; internal signers must be the owner.
type SignerInput struct {
	Email    string
	FullName string
	UserID   *id.UserID
	Order    int
}

// Create stores a new DRAFT envelope for owner.
func (s *Service) Create(ctx context.Context, owner Owner, in CreateInput) (_ *models.Envelope, err error) {
	ctx, span := s.startSpan(ctx, "envelope.create", id.EnvelopeID{})
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	order := in.SigningOrder
	if order == "" {
		order = models.SigningOrderOwnerFirst
	}
	e, err := models.NewEnvelope(id.EnvelopeID(uuid.New()), owner.TenantID, owner.UserID, in.Title, in.Description, order, in.ExpiresAt, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, e); err != nil {
			return translateStore(err, "create envelope")
		}
		return s.emitLifecycle(ctx, e, models.EventEnvelopeCreated, "", nil, now)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "envelope_created",
		"envelope_id", e.ID.String(),
		"tenant_id", e.TenantID.String(),
		"owner_id", e.OwnerID.String(),
	)
	if s.metrics != nil {
		s.metrics.Created.Inc()
	}
	return e, nil
}

// Get returns one of owner's envelopes.
func (s *Service) Get(ctx context.Context, owner Owner, envelopeID id.EnvelopeID) (*models.Envelope, error) {
	return s.loadOwned(ctx, owner, envelopeID)
}

// AuditTrail returns the envelope's recorded history, oldest first.
func (s *Service) AuditTrail(ctx context.Context, owner Owner, envelopeID id.EnvelopeID) ([]audit.Event, error) {
	if _, err := s.loadOwned(ctx, owner, envelopeID); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []audit.Event{}, nil
	}
	events, err := s.audit.ListByEnvelope(ctx, envelopeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}

// List returns owner's envelopes, newest first.
func (s *Service) List(ctx context.Context, owner Owner, filter models.ListFilter) ([]*models.Envelope, error) {
	envelopes, err := s.store.ListByOwner(ctx, owner.TenantID, owner.UserID, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list envelopes")
	}
	return envelopes, nil
}

// Update applies metadata changes to a draft.
func (s *Service) Update(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, patch models.Patch) (*models.Envelope, error) {
	return s.mutateDraft(ctx, owner, envelopeID, "envelope_updated", func(_ context.Context, e *models.Envelope, now time.Time) error {
		return e.ApplyPatch(patch, now)
	})
}

// AddSigner inserts a signer into a draft.
func (s *Service) AddSigner(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, in SignerInput) (*models.Signer, error) {
	signer := &models.Signer{
		ID:         id.SignerID(uuid.New()),
		Email:      in.Email,
		FullName:   in.FullName,
		UserID:     in.UserID,
		IsExternal: in.UserID == nil,
		Order:      in.Order,
	}
	if !signer.IsExternal && *in.UserID != owner.UserID {
		return nil, dErrors.New(dErrors.CodeValidation, "only the owner can be an internal signer")
	}
	_, err := s.mutateDraft(ctx, owner, envelopeID, "signer_added", func(_ context.Context, e *models.Envelope, now time.Time) error {
		return e.AddSigner(signer, now)
	})
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// RemoveSigner drops a signer from a draft and compacts the orders.
func (s *Service) RemoveSigner(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, signerID id.SignerID) (*models.Envelope, error) {
	return s.mutateDraft(ctx, owner, envelopeID, "signer_removed", func(ctx context.Context, e *models.Envelope, now time.Time) error {
		if err := e.RemoveSigner(signerID, now); err != nil {
			return err
		}
		_, err := s.invitations.RevokeForSigner(ctx, signerID, invitationModels.ReasonSignerRemoved, now)
		return err
	})
}

// UploadDocument stores body and attaches it to a draft. The blob is
// written first and removed again if the envelope write fails.
func (s *Service) UploadDocument(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, name, contentType string, body io.Reader) (_ *models.Document, err error) {
	ctx, span := s.startSpan(ctx, "envelope.upload_document", envelopeID)
	defer func() { endSpan(span, err) }()

	if name == "" || len(name) > 255 {
		return nil, dErrors.New(dErrors.CodeValidation, "document name must be between 1 and 255 characters")
	}
	e, err := s.loadOwned(ctx, owner, envelopeID)
	if err != nil {
		return nil, err
	}
	if err := e.CanEdit(); err != nil {
		return nil, err
	}
	upload, err := document.ReadUpload(body, contentType)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	doc := &models.Document{
		ID:          id.DocumentID(uuid.New()),
		Name:        name,
		ContentType: upload.ContentType,
		SHA256:      upload.SHA256,
		SizeBytes:   upload.Size(),
		CreatedAt:   now,
	}
	doc.StorageKey = document.Key(e.TenantID, e.ID, doc.ID, name)
	if err := s.blobs.Put(ctx, doc.StorageKey, doc.ContentType, upload.Reader(), doc.SizeBytes); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store document")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.loadOwned(ctx, owner, envelopeID)
		if err != nil {
			return err
		}
		if err := current.AddDocument(doc, now); err != nil {
			return err
		}
		return s.save(ctx, current)
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), doc.StorageKey); delErr != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned document",
				"error", delErr,
				"storage_key", doc.StorageKey,
			)
		}
		return nil, err
	}

	s.logAudit(ctx, "document_uploaded",
		"envelope_id", envelopeID.String(),
		"document_id", doc.ID.String(),
		"sha256", doc.SHA256,
		"size_bytes", doc.SizeBytes,
	)
	if s.metrics != nil {
		s.metrics.DocumentBytes.Observe(float64(doc.SizeBytes))
	}
	return doc, nil
}

// DocumentURL returns a short-lived download link for one of owner's documents.
func (s *Service) DocumentURL(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, documentID id.DocumentID) (string, time.Time, error) {
	e, err := s.loadOwned(ctx, owner, envelopeID)
	if err != nil {
		return "", time.Time{}, err
	}
	doc, ok := e.FindDocument(documentID)
	if !ok {
		return "", time.Time{}, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return s.presign(ctx, doc)
}

func (s *Service) presign(ctx context.Context, doc *models.Document) (string, time.Time, error) {
	url, err := s.blobs.PresignGet(ctx, doc.StorageKey, s.urlTTL)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create document link")
	}
	return url, requestcontext.Now(ctx).Add(s.urlTTL), nil
}

// Send moves a draft to READY_FOR_SIGNATURE and invites the first signers.
func (s *Service) Send(ctx context.Context, owner Owner, envelopeID id.EnvelopeID) (_ *models.Envelope, err error) {
	ctx, span := s.startSpan(ctx, "envelope.send", envelopeID)
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var e *models.Envelope
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.loadOwned(ctx, owner, envelopeID)
		if err != nil {
			return err
		}
		if err := e.Send(now); err != nil {
			return err
		}
		if err := s.save(ctx, e); err != nil {
			return err
		}
		if err := s.emitLifecycle(ctx, e, models.EventEnvelopeSent, "", nil, now); err != nil {
			return err
		}
		return s.inviteNext(ctx, e, now)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "envelope_sent",
		"envelope_id", e.ID.String(),
		"signer_count", len(e.Signers),
	)
	if s.metrics != nil {
		s.metrics.Sent.Inc()
	}
	return e, nil
}

// SignAsOwner records the owner's own signature.
func (s *Service) SignAsOwner(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, client ClientInfo) (_ *models.Envelope, err error) {
	ctx, span := s.startSpan(ctx, "envelope.sign_as_owner", envelopeID)
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var (
		e         *models.Envelope
		signer    *models.Signer
		completed bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.loadOwned(ctx, owner, envelopeID)
		if err != nil {
			return err
		}
		signer = e.OwnerSigner()
		if signer == nil {
			return dErrors.New(dErrors.CodeForbidden, "owner is not a signer of this envelope")
		}
		completed, err = s.sign(ctx, e, signer, client, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordSigned(ctx, e, signer, completed, now)
	return e, nil
}

// Cancel ends an envelope and revokes its outstanding invitations.
func (s *Service) Cancel(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, reason string) (_ *models.Envelope, err error) {
	ctx, span := s.startSpan(ctx, "envelope.cancel", envelopeID)
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var e *models.Envelope
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.loadOwned(ctx, owner, envelopeID)
		if err != nil {
			return err
		}
		if err := e.Cancel(reason, now); err != nil {
			return err
		}
		if err := s.save(ctx, e); err != nil {
			return err
		}
		if _, err := s.invitations.RevokeForEnvelope(ctx, e.ID, invitationModels.ReasonEnvelopeCancelled, now); err != nil {
			return err
		}
		return s.emitLifecycle(ctx, e, models.EventEnvelopeCancelled, reason, nil, now)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "envelope_cancelled",
		"envelope_id", e.ID.String(),
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.IncrementFinished(string(models.StatusCancelled))
	}
	return e, nil
}

// Reinvite issues a fresh invitation to an external signer whose turn it
// is, revoking the previous one.
func (s *Service) Reinvite(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, signerID id.SignerID) error {
	now := requestcontext.Now(ctx)
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.loadOwned(ctx, owner, envelopeID)
		if err != nil {
			return err
		}
		signer, ok := e.FindSigner(signerID)
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "signer not found")
		}
		if !signer.IsExternal {
			return dErrors.New(dErrors.CodeValidation, "internal signers are not invited")
		}
		if e.IsExpired(now) {
			return dErrors.New(dErrors.CodeGone, "envelope has expired")
		}
		if !isNext(e, signerID) {
			return dErrors.New(dErrors.CodeInvariantViolation, "signer is not awaiting an invitation")
		}
		return s.invite(ctx, e, signer, now)
	})
}

func isNext(e *models.Envelope, signerID id.SignerID) bool {
	for _, next := range e.NextSigners() {
		if next.ID == signerID {
			return true
		}
	}
	return false
}

// mutateDraft loads a draft, applies fn and saves it in one transaction.
func (s *Service) mutateDraft(ctx context.Context, owner Owner, envelopeID id.EnvelopeID, event string, fn func(context.Context, *models.Envelope, time.Time) error) (*models.Envelope, error) {
	now := requestcontext.Now(ctx)
	var e *models.Envelope
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		e, err = s.loadOwned(ctx, owner, envelopeID)
		if err != nil {
			return err
		}
		if err := fn(ctx, e, now); err != nil {
			return err
		}
		return s.save(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, event, "envelope_id", e.ID.String())
	return e, nil
}
