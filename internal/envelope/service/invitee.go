package service

import (
	"context"
	"time"

	"signature-service/internal/envelope/models"
	invitationModels "signature-service/internal/invitation/models"
	"signature-service/internal/sealing"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/device"
	"signature-service/pkg/requestcontext"
)

// InviteeView is what an invited signer sees before signing.
type InviteeView struct {
	Envelope  *models.Envelope
	Signer    *models.Signer
	Documents []DocumentLink
}

// DocumentLink is a presigned download link for one document.
type DocumentLink struct {
	Document  *models.Document
	URL       string
	ExpiresAt time.Time
}

// ViewAsInvitee counts a view and returns the envelope with download links.
func (s *Service) ViewAsInvitee(ctx context.Context, plaintext string) (_ *InviteeView, err error) {
	ctx, span := s.startSpan(ctx, "envelope.view_as_invitee", id.EnvelopeID{})
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	token, err := s.invitations.MarkViewed(ctx, plaintext, now)
	if err != nil {
		return nil, err
	}
	e, signer, err := s.loadForToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusReadyForSignature || e.IsExpired(now) {
		return nil, dErrors.New(dErrors.CodeGone, "envelope is no longer awaiting signatures")
	}

	view := &InviteeView{Envelope: e, Signer: signer}
	for _, doc := range e.Documents {
		url, expiresAt, err := s.presign(ctx, doc)
		if err != nil {
			return nil, err
		}
		view.Documents = append(view.Documents, DocumentLink{Document: doc, URL: url, ExpiresAt: expiresAt})
	}
	return view, nil
}

// SignAsInvitee records an external signer's signature and spends the token.
func (s *Service) SignAsInvitee(ctx context.Context, plaintext string, client ClientInfo) (_ *models.Envelope, err error) {
	ctx, span := s.startSpan(ctx, "envelope.sign_as_invitee", id.EnvelopeID{})
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var (
		e         *models.Envelope
		signer    *models.Signer
		completed bool
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		token, err := s.invitations.Resolve(ctx, plaintext, now)
		if err != nil {
			return err
		}
		e, signer, err = s.loadForToken(ctx, token)
		if err != nil {
			return err
		}
		completed, err = s.sign(ctx, e, signer, client, func(ctx context.Context) error {
			_, err := s.invitations.Consume(ctx, plaintext, now)
			return err
		}, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordSigned(ctx, e, signer, completed, now)
	return e, nil
}

// DeclineAsInvitee ends the envelope on behalf of an external signer and
// revokes every outstanding invitation.
func (s *Service) DeclineAsInvitee(ctx context.Context, plaintext, reason string) (_ *models.Envelope, err error) {
	ctx, span := s.startSpan(ctx, "envelope.decline_as_invitee", id.EnvelopeID{})
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	var e *models.Envelope
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		token, err := s.invitations.Resolve(ctx, plaintext, now)
		if err != nil {
			return err
		}
		var signer *models.Signer
		e, signer, err = s.loadForToken(ctx, token)
		if err != nil {
			return err
		}
		if err := e.RecordDecline(signer.ID, reason, now); err != nil {
			return err
		}
		if err := s.save(ctx, e); err != nil {
			return err
		}
		if _, err := s.invitations.RevokeForEnvelope(ctx, e.ID, invitationModels.ReasonEnvelopeDeclined, now); err != nil {
			return err
		}
		return s.emitLifecycle(ctx, e, models.EventEnvelopeDeclined, reason, &signer.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "envelope_declined",
		"envelope_id", e.ID.String(),
		"signer_id", e.DeclinedBySignerID.String(),
	)
	if s.metrics != nil {
		s.metrics.IncrementFinished(string(models.StatusDeclined))
	}
	return e, nil
}

func (s *Service) loadForToken(ctx context.Context, token *invitationModels.Token) (*models.Envelope, *models.Signer, error) {
	e, err := s.store.FindByID(ctx, token.EnvelopeID)
	if err != nil {
		return nil, nil, translateStore(err, "load envelope")
	}
	signer, ok := e.FindSigner(token.SignerID)
	if !ok || !signer.IsExternal {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "invitation not found")
	}
	return e, signer, nil
}

// sign seals the signer's digest and applies the signature to e, then
// either completes the envelope or invites the next signers. consume, when
// set, spends the invitation after the flow rule has passed.
func (s *Service) sign(ctx context.Context, e *models.Envelope, signer *models.Signer, client ClientInfo, consume func(context.Context) error, now time.Time) (bool, error) {
	if err := models.ValidateSigningFlow(e, signer, now); err != nil {
		return false, err
	}

	digest := sealing.Digest(e.ID, signer.ID, e.DocumentDigests(), now)
	seal, err := s.sealer.Seal(ctx, digest)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal signature")
	}
	info := device.Describe(client.UserAgent)
	evidence := &models.SignatureEvidence{
		IPAddress:         client.IPAddress,
		UserAgent:         client.UserAgent,
		Browser:           info.Browser,
		OS:                info.OS,
		Device:            info.Label(),
		DeviceFingerprint: device.Fingerprint(client.UserAgent),
		SignedDigest:      sealing.DigestHex(digest),
		Seal:              seal.Encoded(),
		SealKeyID:         seal.KeyID,
		SealAlgorithm:     seal.Algorithm,
	}

	if consume != nil {
		if err := consume(ctx); err != nil {
			return false, err
		}
	}
	completed, err := e.RecordSignature(signer.ID, evidence, now)
	if err != nil {
		return false, err
	}
	if err := s.save(ctx, e); err != nil {
		return false, err
	}

	if err := s.emit(ctx, e, models.EventSignerSigned, models.SignerSignedEvent{
		EnvelopeID:   e.ID,
		TenantID:     e.TenantID,
		SignerID:     signer.ID,
		Email:        signer.Email,
		Order:        signer.Order,
		IsExternal:   signer.IsExternal,
		SignedDigest: evidence.SignedDigest,
		SealKeyID:    evidence.SealKeyID,
		OccurredAt:   now,
	}, now); err != nil {
		return false, err
	}
	if err := s.recordAudit(ctx, e, models.EventSignerSigned, "", &signer.ID, now); err != nil {
		return false, err
	}
	if completed {
		return true, s.emitLifecycle(ctx, e, models.EventEnvelopeCompleted, "", nil, now)
	}
	return false, s.inviteNext(ctx, e, now)
}

func (s *Service) recordSigned(ctx context.Context, e *models.Envelope, signer *models.Signer, completed bool, now time.Time) {
	s.logAudit(ctx, "signer_signed",
		"envelope_id", e.ID.String(),
		"signer_id", signer.ID.String(),
		"external", signer.IsExternal,
	)
	if completed {
		s.logAudit(ctx, "envelope_completed", "envelope_id", e.ID.String())
	}
	if s.metrics == nil {
		return
	}
	s.metrics.IncrementSignature(signer.IsExternal)
	if completed {
		s.metrics.IncrementFinished(string(models.StatusCompleted))
		s.metrics.ObserveCompletion(e.SentAt, now)
	}
}
