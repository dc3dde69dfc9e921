package models

import (
	"time"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	platformstrings "signature-service/pkg/platform/strings"
)

// ValidateSigningOrder checks the ordering invariants of a signer list.
// This is pure domain logic - no I/O, no side effects.
//
//  1. Orders are unique and contiguous from 1..n
//  2. Emails are unique (case-insensitive)
//  3. At most one internal signer is bound to the owner
//  4. OWNER_FIRST puts the owner (if signing) at order 1;
//     INVITEES_FIRST puts the owner last
func ValidateSigningOrder(order SigningOrder, ownerID id.UserID, signers []*Signer) error {
	seenOrders := make(map[int]bool, len(signers))
	seenEmails := make(map[string]bool, len(signers))
	var owner *Signer
	maxOrder := 0

	for _, s := range signers {
		if s.Order < 1 || s.Order > len(signers) {
			return dErrors.New(dErrors.CodeInvariantViolation, "signer orders must be contiguous starting at 1")
		}
		if seenOrders[s.Order] {
			return dErrors.New(dErrors.CodeInvariantViolation, "signer orders must be unique")
		}
		seenOrders[s.Order] = true

		email := platformstrings.NormalizeEmail(s.Email)
		if seenEmails[email] {
			return dErrors.New(dErrors.CodeInvariantViolation, "signer emails must be unique")
		}
		seenEmails[email] = true

		if s.IsOwner(ownerID) {
			if owner != nil {
				return dErrors.New(dErrors.CodeInvariantViolation, "owner can only sign once")
			}
			owner = s
		}
		if s.Order > maxOrder {
			maxOrder = s.Order
		}
	}

	if owner == nil {
		return nil
	}
	switch order {
	case SigningOrderOwnerFirst:
		if owner.Order != 1 {
			return dErrors.New(dErrors.CodeInvariantViolation, "owner must sign first for OWNER_FIRST envelopes")
		}
	case SigningOrderInviteesFirst:
		if owner.Order != maxOrder {
			return dErrors.New(dErrors.CodeInvariantViolation, "owner must sign last for INVITEES_FIRST envelopes")
		}
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown signing order")
	}
	return nil
}

// ValidateSigningFlow decides whether signer may sign envelope right now.
// Rule priority (fail-fast):
//  1. Envelope is awaiting signatures
//  2. Envelope has not expired
//  3. Signer has not already acted
//  4. Every lower-order signer has signed
func ValidateSigningFlow(e *Envelope, signer *Signer, now time.Time) error {
	if e.Status != StatusReadyForSignature {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope is not awaiting signatures")
	}
	if e.IsExpired(now) {
		return dErrors.New(dErrors.CodeGone, "envelope has expired")
	}
	if signer.Status != SignerStatusPending {
		return dErrors.New(dErrors.CodeInvariantViolation, "signer has already acted on this envelope")
	}
	for _, other := range e.Signers {
		if other.Order < signer.Order && other.Status != SignerStatusSigned {
			return dErrors.New(dErrors.CodeInvariantViolation, "waiting for earlier signers to sign")
		}
	}
	return nil
}

// ValidateSend checks that a draft is complete enough to route to signers.
func ValidateSend(e *Envelope, now time.Time) error {
	if !e.Status.CanTransitionTo(StatusReadyForSignature) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only draft envelopes can be sent")
	}
	if len(e.Signers) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope needs at least one signer")
	}
	if len(e.Documents) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "envelope needs at least one document")
	}
	if e.IsExpired(now) {
		return dErrors.New(dErrors.CodeInvariantViolation, "expiration must be in the future")
	}
	return ValidateSigningOrder(e.SigningOrder, e.OwnerID, e.Signers)
}
