package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "signature-service/pkg/domain"
)

func TestValidateSigningOrder(t *testing.T) {
	ownerID := id.UserID(uuid.New())
	ownerSigner := func(order int) *Signer {
		uid := ownerID
		return &Signer{Email: "owner@example.com", UserID: &uid, Order: order}
	}
	ext := func(email string, order int) *Signer {
		return &Signer{Email: email, IsExternal: true, Order: order}
	}

	tests := []struct {
		name    string
		order   SigningOrder
		signers []*Signer
		wantErr bool
	}{
		{"empty list", SigningOrderOwnerFirst, nil, false},
		{"externals only", SigningOrderInviteesFirst, []*Signer{ext("a@x.io", 1), ext("b@x.io", 2)}, false},
		{"owner first ok", SigningOrderOwnerFirst, []*Signer{ownerSigner(1), ext("a@x.io", 2)}, false},
		{"owner first violated", SigningOrderOwnerFirst, []*Signer{ext("a@x.io", 1), ownerSigner(2)}, true},
		{"invitees first ok", SigningOrderInviteesFirst, []*Signer{ext("a@x.io", 1), ownerSigner(2)}, false},
		{"invitees first violated", SigningOrderInviteesFirst, []*Signer{ownerSigner(1), ext("a@x.io", 2)}, true},
		{"gap in orders", SigningOrderOwnerFirst, []*Signer{ext("a@x.io", 1), ext("b@x.io", 3)}, true},
		{"duplicate order", SigningOrderOwnerFirst, []*Signer{ext("a@x.io", 1), ext("b@x.io", 1)}, true},
		{"zero order", SigningOrderOwnerFirst, []*Signer{ext("a@x.io", 0)}, true},
		{"duplicate email", SigningOrderOwnerFirst, []*Signer{ext("a@x.io", 1), ext("A@X.IO", 2)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSigningOrder(tt.order, ownerID, tt.signers)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSigningFlowRejectsExpiredEnvelope(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	signer := &Signer{Order: 1, Status: SignerStatusPending}
	env := &Envelope{Status: StatusReadyForSignature, ExpiresAt: &past, Signers: []*Signer{signer}}

	err := ValidateSigningFlow(env, signer, now)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}
