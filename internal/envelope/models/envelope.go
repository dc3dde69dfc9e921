package models

import (
	"slices"
	"strings"
	"time"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
)

const (
	maxTitleLength       = 255
	maxDescriptionLength = 2000
	maxSigners           = 50
	maxDocuments         = 20
	maxReasonLength      = 1000
)

// Envelope is the aggregate root for a document package routed to signers.
//
// Invariants:
//   - Title is non-empty and at most 255 characters
//   - Signers, documents and metadata change only while Status is DRAFT
//   - Signer orders are unique and contiguous from 1 (see ValidateSigningOrder)
//   - Status follows Status.CanTransitionTo; terminal states never change
//   - Version increases by one on every persisted change
type Envelope struct {
	ID                 id.EnvelopeID `json:"id"`
	TenantID           id.TenantID   `json:"tenant_id"`
	OwnerID            id.UserID     `json:"owner_id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Status             Status        `json:"status"`
	SigningOrder       SigningOrder  `json:"signing_order"`
	Signers            []*Signer     `json:"signers"`
	Documents          []*Document   `json:"documents"`
	ExpiresAt          *time.Time    `json:"expires_at,omitempty"`
	SentAt             *time.Time    `json:"sent_at,omitempty"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CancelReason       string        `json:"cancel_reason,omitempty"`
	DeclinedAt         *time.Time    `json:"declined_at,omitempty"`
	DeclinedBySignerID *id.SignerID  `json:"declined_by_signer_id,omitempty"`
	DeclineReason      string        `json:"decline_reason,omitempty"`
	ExpiredAt          *time.Time    `json:"expired_at,omitempty"`
	Version            int           `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewEnvelope builds a DRAFT envelope after validating its invariants.
func NewEnvelope(
	envelopeID id.EnvelopeID,
	tenantID id.TenantID,
	ownerID id.UserID,
	title string,
	description string,
	order SigningOrder,
	expiresAt *time.Time,
	now time.Time,
) (*Envelope, error) {
	if ownerID.IsNil() || tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "envelope requires an owner and tenant")
	}
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if len(description) > maxDescriptionLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "description must be 2000 characters or less")
	}
	if !order.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown signing order")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiration must be in the future")
	}
	return &Envelope{
		ID:           envelopeID,
		TenantID:     tenantID,
		OwnerID:      ownerID,
		Title:        title,
		Description:  description,
		Status:       StatusDraft,
		SigningOrder: order,
		Signers:      []*Signer{},
		Documents:    []*Document{},
		ExpiresAt:    expiresAt,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "title cannot be empty")
	}
	if len(title) > maxTitleLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "title must be 255 characters or less")
	}
	return nil
}

// IsOwnedBy reports whether the owner in the given tenant may manage the envelope.
func (e *Envelope) IsOwnedBy(tenantID id.TenantID, ownerID id.UserID) bool {
	return e.TenantID == tenantID && e.OwnerID == ownerID
}

// IsExpired reports whether ExpiresAt has passed as of now.
func (e *Envelope) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// CanEdit checks that the envelope still accepts changes to its content.
func (e *Envelope) CanEdit() error {
	if e.Status != StatusDraft {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope can only be modified while in draft")
	}
	return nil
}

// Patch carries optional metadata changes for a draft.
type Patch struct {
	Title        *string
	Description  *string
	SigningOrder *SigningOrder
	ExpiresAt    *time.Time
	ClearExpiry  bool
}

// ApplyPatch updates draft metadata. The signing-order rule is re-checked
// because switching OWNER_FIRST/INVITEES_FIRST can invalidate the owner's position.
func (e *Envelope) ApplyPatch(p Patch, now time.Time) error {
	if err := e.CanEdit(); err != nil {
		return err
	}
	next := *e
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		next.Title = title
	}
	if p.Description != nil {
		if len(*p.Description) > maxDescriptionLength {
			return dErrors.New(dErrors.CodeInvariantViolation, "description must be 2000 characters or less")
		}
		next.Description = *p.Description
	}
	if p.SigningOrder != nil {
		if !p.SigningOrder.IsValid() {
			return dErrors.New(dErrors.CodeInvariantViolation, "unknown signing order")
		}
		next.SigningOrder = *p.SigningOrder
	}
	if p.ClearExpiry {
		next.ExpiresAt = nil
	} else if p.ExpiresAt != nil {
		if !p.ExpiresAt.After(now) {
			return dErrors.New(dErrors.CodeInvariantViolation, "expiration must be in the future")
		}
		expiresAt := *p.ExpiresAt
		next.ExpiresAt = &expiresAt
	}
	if err := ValidateSigningOrder(next.SigningOrder, next.OwnerID, next.Signers); err != nil {
		return err
	}
	next.UpdatedAt = now
	*e = next
	return nil
}

// FindSigner returns the signer with the given ID.
func (e *Envelope) FindSigner(signerID id.SignerID) (*Signer, bool) {
	for _, s := range e.Signers {
		if s.ID == signerID {
			return s, true
		}
	}
	return nil, false
}

// OwnerSigner returns the internal signer bound to the envelope owner, if any.
func (e *Envelope) OwnerSigner() *Signer {
	for _, s := range e.Signers {
		if s.IsOwner(e.OwnerID) {
			return s
		}
	}
	return nil
}

// FindDocument returns the document with the given ID.
func (e *Envelope) FindDocument(documentID id.DocumentID) (*Document, bool) {
	for _, d := range e.Documents {
		if d.ID == documentID {
			return d, true
		}
	}
	return nil, false
}

// AddSigner inserts a signer. Order 0 appends; otherwise the signer takes
// that position and later signers shift down by one.
func (e *Envelope) AddSigner(signer *Signer, now time.Time) error {
	if err := e.CanEdit(); err != nil {
		return err
	}
	if len(e.Signers) >= maxSigners {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope has too many signers")
	}
	if err := signer.validateIdentity(); err != nil {
		return err
	}

	position := signer.Order
	if position == 0 {
		position = len(e.Signers) + 1
	}
	if position < 1 || position > len(e.Signers)+1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "signer order must be between 1 and the number of signers plus one")
	}

	next := make([]*Signer, 0, len(e.Signers)+1)
	for _, s := range sortedByOrder(e.Signers) {
		cp := *s
		if cp.Order >= position {
			cp.Order++
		}
		next = append(next, &cp)
	}
	added := *signer
	added.EnvelopeID = e.ID
	added.Order = position
	added.Status = SignerStatusPending
	next = append(next, &added)
	next = sortedByOrder(next)

	if err := ValidateSigningOrder(e.SigningOrder, e.OwnerID, next); err != nil {
		return err
	}
	e.Signers = next
	e.UpdatedAt = now
	*signer = added
	return nil
}

// RemoveSigner deletes a signer and compacts the remaining orders.
func (e *Envelope) RemoveSigner(signerID id.SignerID, now time.Time) error {
	if err := e.CanEdit(); err != nil {
		return err
	}
	if _, ok := e.FindSigner(signerID); !ok {
		return dErrors.New(dErrors.CodeNotFound, "signer not found")
	}
	next := make([]*Signer, 0, len(e.Signers)-1)
	for _, s := range sortedByOrder(e.Signers) {
		if s.ID == signerID {
			continue
		}
		cp := *s
		cp.Order = len(next) + 1
		next = append(next, &cp)
	}
	if err := ValidateSigningOrder(e.SigningOrder, e.OwnerID, next); err != nil {
		return err
	}
	e.Signers = next
	e.UpdatedAt = now
	return nil
}

// AddDocument attaches an uploaded document to a draft.
func (e *Envelope) AddDocument(doc *Document, now time.Time) error {
	if err := e.CanEdit(); err != nil {
		return err
	}
	if len(e.Documents) >= maxDocuments {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope has too many documents")
	}
	doc.EnvelopeID = e.ID
	e.Documents = append(e.Documents, doc)
	e.UpdatedAt = now
	return nil
}

// Send moves a valid draft to READY_FOR_SIGNATURE.
func (e *Envelope) Send(now time.Time) error {
	if err := ValidateSend(e, now); err != nil {
		return err
	}
	e.Status = StatusReadyForSignature
	e.SentAt = &now
	e.UpdatedAt = now
	return nil
}

// NextSigners returns the pending signers whose turn it is: those whose
// every lower-order signer has signed. Empty unless READY_FOR_SIGNATURE.
func (e *Envelope) NextSigners() []*Signer {
	if e.Status != StatusReadyForSignature {
		return nil
	}
	var next []*Signer
	for _, s := range sortedByOrder(e.Signers) {
		if s.Status == SignerStatusSigned {
			continue
		}
		if s.Status != SignerStatusPending {
			return nil
		}
		if len(next) > 0 && s.Order != next[0].Order {
			break
		}
		next = append(next, s)
	}
	return next
}

// AllSigned reports whether every signer has signed.
func (e *Envelope) AllSigned() bool {
	if len(e.Signers) == 0 {
		return false
	}
	for _, s := range e.Signers {
		if s.Status != SignerStatusSigned {
			return false
		}
	}
	return true
}

// RecordSignature applies a signer's signature after the flow rule passes.
// Returns true when the signature completed the envelope.
func (e *Envelope) RecordSignature(signerID id.SignerID, evidence *SignatureEvidence, now time.Time) (bool, error) {
	signer, ok := e.FindSigner(signerID)
	if !ok {
		return false, dErrors.New(dErrors.CodeNotFound, "signer not found")
	}
	if err := ValidateSigningFlow(e, signer, now); err != nil {
		return false, err
	}
	signer.Status = SignerStatusSigned
	signer.SignedAt = &now
	signer.Evidence = evidence
	e.UpdatedAt = now

	if e.AllSigned() {
		e.Status = StatusCompleted
		e.CompletedAt = &now
		return true, nil
	}
	return false, nil
}

// RecordDecline marks a pending signer as declined, which ends the envelope.
func (e *Envelope) RecordDecline(signerID id.SignerID, reason string, now time.Time) error {
	signer, ok := e.FindSigner(signerID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "signer not found")
	}
	if e.Status != StatusReadyForSignature {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope is not awaiting signatures")
	}
	if e.IsExpired(now) {
		return dErrors.New(dErrors.CodeGone, "envelope has expired")
	}
	if signer.Status != SignerStatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "signer has already acted on this envelope")
	}
	if len(reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "reason must be 1000 characters or less")
	}
	signer.Status = SignerStatusDeclined
	signer.DeclinedAt = &now
	signer.DeclineReason = reason

	e.Status = StatusDeclined
	e.DeclinedAt = &now
	declinedBy := signer.ID
	e.DeclinedBySignerID = &declinedBy
	e.DeclineReason = reason
	e.UpdatedAt = now
	return nil
}

// Cancel ends a draft or in-flight envelope at the owner's request.
func (e *Envelope) Cancel(reason string, now time.Time) error {
	if !e.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope cannot be cancelled in status "+string(e.Status))
	}
	if len(reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "reason must be 1000 characters or less")
	}
	e.Status = StatusCancelled
	e.CancelledAt = &now
	e.CancelReason = reason
	e.UpdatedAt = now
	return nil
}

// Expire moves an overdue in-flight envelope to EXPIRED.
func (e *Envelope) Expire(now time.Time) error {
	if !e.Status.CanTransitionTo(StatusExpired) {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope cannot expire in status "+string(e.Status))
	}
	if !e.IsExpired(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope has not reached its expiration")
	}
	e.Status = StatusExpired
	e.ExpiredAt = &now
	e.UpdatedAt = now
	return nil
}

// DocumentDigests returns document SHA-256 digests in upload order.
func (e *Envelope) DocumentDigests() []string {
	out := make([]string, 0, len(e.Documents))
	for _, d := range e.Documents {
		out = append(out, d.SHA256)
	}
	return out
}

func sortedByOrder(signers []*Signer) []*Signer {
	out := slices.Clone(signers)
	slices.SortFunc(out, func(a, b *Signer) int { return a.Order - b.Order })
	return out
}

// Clone returns a deep copy so stores can hand out envelopes without sharing
// signer or document pointers.
func (e *Envelope) Clone() *Envelope {
	cp := *e
	cp.Signers = make([]*Signer, 0, len(e.Signers))
	for _, s := range e.Signers {
		sc := *s
		if s.Evidence != nil {
			ev := *s.Evidence
			sc.Evidence = &ev
		}
		cp.Signers = append(cp.Signers, &sc)
	}
	cp.Documents = make([]*Document, 0, len(e.Documents))
	for _, d := range e.Documents {
		dc := *d
		cp.Documents = append(cp.Documents, &dc)
	}
	return &cp
}

// ListFilter narrows an owner's envelope listing.
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}
