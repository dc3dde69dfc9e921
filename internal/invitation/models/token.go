package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
)

// TokenBytes is the amount of randomness in an invitation secret.
const TokenBytes = 32

// Status is the invitation token lifecycle state.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusViewed  Status = "VIEWED"
	StatusSigned  Status = "SIGNED"
	StatusRevoked Status = "REVOKED"
)

// IsLive reports whether a token in this status can still be used.
func (s Status) IsLive() bool {
	return s == StatusActive || s == StatusViewed
}

// Token is the persisted half of an invitation. Only the SHA-256 of the
// secret is stored; the plaintext is handed out once at issuance.
type Token struct {
	ID            id.InvitationTokenID `json:"id"`
	EnvelopeID    id.EnvelopeID        `json:"envelope_id"`
	SignerID      id.SignerID          `json:"signer_id"`
	TokenHash     string               `json:"-"`
	Status        Status               `json:"status"`
	ExpiresAt     time.Time            `json:"expires_at"`
	SentAt        time.Time            `json:"sent_at"`
	LastViewedAt  *time.Time           `json:"last_viewed_at,omitempty"`
	ViewCount     int                  `json:"view_count"`
	UsedAt        *time.Time           `json:"used_at,omitempty"`
	RevokedAt     *time.Time           `json:"revoked_at,omitempty"`
	RevokedReason string               `json:"revoked_reason,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// Generate returns a new base64url secret and its storage hash.
func Generate() (plaintext string, hash string, err error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("read random bytes: %w", err)
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, Hash(plaintext), nil
}

// Hash is the lookup key for a plaintext secret.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// NewToken builds an ACTIVE token for signer. ttl is capped by envelopeExpiry when set.
func NewToken(
	tokenID id.InvitationTokenID,
	envelopeID id.EnvelopeID,
	signerID id.SignerID,
	hash string,
	ttl time.Duration,
	envelopeExpiry *time.Time,
	now time.Time,
) (*Token, error) {
	if hash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token hash required")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token ttl must be positive")
	}
	expiresAt := now.Add(ttl)
	if envelopeExpiry != nil && envelopeExpiry.Before(expiresAt) {
		expiresAt = *envelopeExpiry
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "token would already be expired")
	}
	return &Token{
		ID:         tokenID,
		EnvelopeID: envelopeID,
		SignerID:   signerID,
		TokenHash:  hash,
		Status:     StatusActive,
		ExpiresAt:  expiresAt,
		SentAt:     now,
		CreatedAt:  now,
	}, nil
}

// IsExpired reports whether the token is past ExpiresAt.
func (t *Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ValidateForUse checks the token can authorize an invitee action.
// Error messages are matched by stores when translating to sentinels.
func (t *Token) ValidateForUse(now time.Time) error {
	switch t.Status {
	case StatusRevoked:
		return dErrors.New(dErrors.CodeGone, "invitation revoked")
	case StatusSigned:
		return dErrors.New(dErrors.CodeGone, "invitation already used")
	}
	if t.IsExpired(now) {
		return dErrors.New(dErrors.CodeGone, "invitation expired")
	}
	return nil
}

// MarkViewed records a view; the first view moves ACTIVE to VIEWED.
func (t *Token) MarkViewed(now time.Time) {
	if t.Status == StatusActive {
		t.Status = StatusViewed
	}
	t.ViewCount++
	t.LastViewedAt = &now
}

// MarkUsed consumes the token.
func (t *Token) MarkUsed(now time.Time) {
	t.Status = StatusSigned
	t.UsedAt = &now
}

// Revoke invalidates a live token. Returns false when nothing changed.
func (t *Token) Revoke(reason string, now time.Time) bool {
	if !t.Status.IsLive() {
		return false
	}
	t.Status = StatusRevoked
	t.RevokedAt = &now
	t.RevokedReason = reason
	return true
}

// Revocation reasons recorded on tokens.
const (
	ReasonReissued          = "reissued"
	ReasonEnvelopeCancelled = "envelope_cancelled"
	ReasonEnvelopeDeclined  = "envelope_declined"
	ReasonEnvelopeExpired   = "envelope_expired"
	ReasonSignerRemoved     = "signer_removed"
)

// Issued pairs a stored token with the plaintext secret for delivery.
type Issued struct {
	Token     *Token
	Plaintext string
}
