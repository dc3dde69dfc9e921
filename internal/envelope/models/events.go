package models

import (
	"time"

	id "signature-service/pkg/domain"
)

// AggregateType tags envelope outbox rows.
const AggregateType = "envelope"

// Outbox event types.
const (
	EventEnvelopeCreated   = "ENVELOPE_CREATED"
	EventEnvelopeSent      = "ENVELOPE_SENT"
	EventInvitationIssued  = "INVITATION_ISSUED"
	EventSignerSigned      = "SIGNER_SIGNED"
	EventEnvelopeCompleted = "ENVELOPE_COMPLETED"
	EventEnvelopeCancelled = "ENVELOPE_CANCELLED"
	EventEnvelopeDeclined  = "ENVELOPE_DECLINED"
	EventEnvelopeExpired   = "ENVELOPE_EXPIRED"
)

// EnvelopeEvent is the payload of lifecycle events.
type EnvelopeEvent struct {
	EnvelopeID id.EnvelopeID `json:"envelope_id"`
	TenantID   id.TenantID   `json:"tenant_id"`
	OwnerID    id.UserID     `json:"owner_id"`
	Title      string        `json:"title"`
	Status     Status        `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	SignerID   *id.SignerID  `json:"signer_id,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewEnvelopeEvent snapshots e for an outbox payload.
func NewEnvelopeEvent(e *Envelope, now time.Time) EnvelopeEvent {
	return EnvelopeEvent{
		EnvelopeID: e.ID,
		TenantID:   e.TenantID,
		OwnerID:    e.OwnerID,
		Title:      e.Title,
		Status:     e.Status,
		OccurredAt: now,
	}
}

// InvitationEvent asks the notifier to email a signer the signing link.
// Token is the plaintext. The outbox row holds it until the event is
// dispatched, then the field is scrubbed.
type InvitationEvent struct {
	EnvelopeID    id.EnvelopeID        `json:"envelope_id"`
	TenantID      id.TenantID          `json:"tenant_id"`
	SignerID      id.SignerID          `json:"signer_id"`
	InvitationID  id.InvitationTokenID `json:"invitation_id"`
	Email         string               `json:"email"`
	FullName      string               `json:"full_name"`
	EnvelopeTitle string               `json:"envelope_title"`
	Token         string               `json:"token"`
	ExpiresAt     time.Time            `json:"expires_at"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// SignerSignedEvent records one signature.
type SignerSignedEvent struct {
	EnvelopeID   id.EnvelopeID `json:"envelope_id"`
	TenantID     id.TenantID   `json:"tenant_id"`
	SignerID     id.SignerID   `json:"signer_id"`
	Email        string        `json:"email"`
	Order        int           `json:"order"`
	IsExternal   bool          `json:"is_external"`
	SignedDigest string        `json:"signed_digest"`
	SealKeyID    string        `json:"seal_key_id"`
	OccurredAt   time.Time     `json:"occurred_at"`
}
