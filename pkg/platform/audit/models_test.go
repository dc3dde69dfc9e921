package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "signature-service/pkg/domain"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		event AuditEvent
		want  EventCategory
	}{
		{EventSignerSigned, CategoryCompliance},
		{EventEnvelopeDeclined, CategoryCompliance},
		{EventInvitationIssued, CategorySecurity},
		{EventEnvelopeCreated, CategoryOperations},
		{AuditEvent("SOMETHING_ELSE"), CategoryOperations},
	}
	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Category())
		})
	}
}

func TestActors(t *testing.T) {
	u := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "user:11111111-1111-1111-1111-111111111111", UserActor(id.UserID(u)))
	assert.Equal(t, "signer:11111111-1111-1111-1111-111111111111", SignerActor(id.SignerID(u)))
}
