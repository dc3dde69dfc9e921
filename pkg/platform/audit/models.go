package audit

import (
	"time"

	id "signature-service/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose so
// retention and routing can differ per category.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance: signatures,
	// declines and envelope completion. Kept for the life of the envelope.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers access changes such as invitations issued or
	// revoked by a cancellation.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity like drafting and sending.
	CategoryOperations EventCategory = "operations"
)

// Event is one entry in an envelope's audit trail. It is written in the
// same transaction as the state change it describes.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	TenantID   id.TenantID
	EnvelopeID id.EnvelopeID
	// SignerID is set when the action concerns one signer.
	SignerID *id.SignerID
	Action   string
	// ActorID is "user:<id>" for the owner, "signer:<id>" for an invitee
	// and "system" for sweeper-driven changes.
	ActorID   string
	Reason    string
	IPAddress string
	UserAgent string
	RequestID string
}

type AuditEvent string

const (
	EventEnvelopeCreated   AuditEvent = "ENVELOPE_CREATED"
	EventEnvelopeSent      AuditEvent = "ENVELOPE_SENT"
	EventInvitationIssued  AuditEvent = "INVITATION_ISSUED"
	EventSignerSigned      AuditEvent = "SIGNER_SIGNED"
	EventEnvelopeCompleted AuditEvent = "ENVELOPE_COMPLETED"
	EventEnvelopeCancelled AuditEvent = "ENVELOPE_CANCELLED"
	EventEnvelopeDeclined  AuditEvent = "ENVELOPE_DECLINED"
	EventEnvelopeExpired   AuditEvent = "ENVELOPE_EXPIRED"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventSignerSigned:      CategoryCompliance,
	EventEnvelopeCompleted: CategoryCompliance,
	EventEnvelopeDeclined:  CategoryCompliance,

	EventInvitationIssued:  CategorySecurity,
	EventEnvelopeCancelled: CategorySecurity,
	EventEnvelopeExpired:   CategorySecurity,

	EventEnvelopeCreated: CategoryOperations,
	EventEnvelopeSent:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// ActorSystem marks changes made by background jobs.
const ActorSystem = "system"

// UserActor and SignerActor format ActorID values.
func UserActor(userID id.UserID) string       { return "user:" + userID.String() }
func SignerActor(signerID id.SignerID) string { return "signer:" + signerID.String() }
