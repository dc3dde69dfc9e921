package models

import (
	"net/mail"
	"strings"
	"time"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	platformstrings "signature-service/pkg/platform/strings"
)

// Status is the envelope lifecycle state.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusReadyForSignature Status = "READY_FOR_SIGNATURE"
	StatusCompleted         Status = "COMPLETED"
	StatusCancelled         Status = "CANCELLED"
	StatusDeclined          Status = "DECLINED"
	StatusExpired           Status = "EXPIRED"
)

var allowedTransitions = map[Status][]Status{
	StatusDraft:             {StatusReadyForSignature, StatusCancelled},
	StatusReadyForSignature: {StatusCompleted, StatusCancelled, StatusDeclined, StatusExpired},
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transitions leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// ParseStatus validates a status coming from a query string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusDraft, StatusReadyForSignature, StatusCompleted, StatusCancelled, StatusDeclined, StatusExpired:
		return s, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown envelope status")
}

// SigningOrder decides where the owner's own signature sits relative to invitees.
type SigningOrder string

const (
	SigningOrderOwnerFirst    SigningOrder = "OWNER_FIRST"
	SigningOrderInviteesFirst SigningOrder = "INVITEES_FIRST"
)

func (o SigningOrder) IsValid() bool {
	return o == SigningOrderOwnerFirst || o == SigningOrderInviteesFirst
}

// SignerStatus is the per-signer progress.
type SignerStatus string

const (
	SignerStatusPending  SignerStatus = "PENDING"
	SignerStatusSigned   SignerStatus = "SIGNED"
	SignerStatusDeclined SignerStatus = "DECLINED"
)

// Signer is a party who must act on an envelope. External signers act
// through invitation tokens; internal signers are authenticated users.
type Signer struct {
	ID            id.SignerID        `json:"id"`
	EnvelopeID    id.EnvelopeID      `json:"envelope_id"`
	Email         string             `json:"email"`
	FullName      string             `json:"full_name"`
	UserID        *id.UserID         `json:"user_id,omitempty"`
	IsExternal    bool               `json:"is_external"`
	Order         int                `json:"order"`
	Status        SignerStatus       `json:"status"`
	SignedAt      *time.Time         `json:"signed_at,omitempty"`
	DeclinedAt    *time.Time         `json:"declined_at,omitempty"`
	DeclineReason string             `json:"decline_reason,omitempty"`
	Evidence      *SignatureEvidence `json:"evidence,omitempty"`
}

// IsOwner reports whether this signer is the envelope owner signing as themselves.
func (s *Signer) IsOwner(ownerID id.UserID) bool {
	return !s.IsExternal && s.UserID != nil && *s.UserID == ownerID
}

func (s *Signer) validateIdentity() error {
	s.Email = platformstrings.NormalizeEmail(s.Email)
	s.FullName = strings.TrimSpace(s.FullName)
	if _, err := mail.ParseAddress(s.Email); err != nil || s.Email == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "signer email is invalid")
	}
	if s.FullName == "" || len(s.FullName) > 200 {
		return dErrors.New(dErrors.CodeInvariantViolation, "signer name must be between 1 and 200 characters")
	}
	if !s.IsExternal && (s.UserID == nil || s.UserID.IsNil()) {
		return dErrors.New(dErrors.CodeInvariantViolation, "internal signers must reference a user")
	}
	if s.IsExternal && s.UserID != nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "external signers cannot reference a user")
	}
	return nil
}

// Document is an uploaded file the signers agree to.
type Document struct {
	ID          id.DocumentID `json:"id"`
	EnvelopeID  id.EnvelopeID `json:"envelope_id"`
	Name        string        `json:"name"`
	ContentType string        `json:"content_type"`
	StorageKey  string        `json:"-"`
	SHA256      string        `json:"sha256"`
	SizeBytes   int64         `json:"size_bytes"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SignatureEvidence is captured at the moment a signer signs.
type SignatureEvidence struct {
	IPAddress         string `json:"ip_address"`
	UserAgent         string `json:"user_agent"`
	Browser           string `json:"browser,omitempty"`
	OS                string `json:"os,omitempty"`
	Device            string `json:"device,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	SignedDigest      string `json:"signed_digest"`
	Seal              string `json:"seal"`
	SealKeyID         string `json:"seal_key_id"`
	SealAlgorithm     string `json:"seal_algorithm"`
}
