// Package domain holds the typed identifiers shared by every bounded context.
//
// Each identifier is a distinct named uuid.UUID so the compiler rejects
// passing a SignerID where an EnvelopeID is expected. Parse functions are
// the trust boundary for identifiers arriving from HTTP paths and tokens.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "signature-service/pkg/domain-errors"
)

// maxIDLength bounds input before handing it to uuid.Parse. The longest
// accepted form is the urn:uuid: prefix plus 36 characters.
const maxIDLength = 45

type (
	UserID            uuid.UUID
	TenantID          uuid.UUID
	EnvelopeID        uuid.UUID
	SignerID          uuid.UUID
	DocumentID        uuid.UUID
	InvitationTokenID uuid.UUID
	OutboxEventID     uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" || strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength || !utf8.ValidString(s) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user ID", s)
	return UserID(u), err
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID("tenant ID", s)
	return TenantID(u), err
}

func ParseEnvelopeID(s string) (EnvelopeID, error) {
	u, err := parseUUID("envelope ID", s)
	return EnvelopeID(u), err
}

func ParseSignerID(s string) (SignerID, error) {
	u, err := parseUUID("signer ID", s)
	return SignerID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document ID", s)
	return DocumentID(u), err
}

func ParseInvitationTokenID(s string) (InvitationTokenID, error) {
	u, err := parseUUID("invitation token ID", s)
	return InvitationTokenID(u), err
}

func ParseOutboxEventID(s string) (OutboxEventID, error) {
	u, err := parseUUID("outbox event ID", s)
	return OutboxEventID(u), err
}

func (id UserID) String() string            { return uuid.UUID(id).String() }
func (id TenantID) String() string          { return uuid.UUID(id).String() }
func (id EnvelopeID) String() string        { return uuid.UUID(id).String() }
func (id SignerID) String() string          { return uuid.UUID(id).String() }
func (id DocumentID) String() string        { return uuid.UUID(id).String() }
func (id InvitationTokenID) String() string { return uuid.UUID(id).String() }
func (id OutboxEventID) String() string     { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id EnvelopeID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id SignerID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id InvitationTokenID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OutboxEventID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets typed ids render as plain UUID strings in JSON.
func (id UserID) MarshalText() ([]byte, error)            { return uuid.UUID(id).MarshalText() }
func (id TenantID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id EnvelopeID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id SignerID) MarshalText() ([]byte, error)          { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id InvitationTokenID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OutboxEventID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error            { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TenantID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EnvelopeID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SignerID) UnmarshalText(b []byte) error          { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *InvitationTokenID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OutboxEventID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
