package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signature-service/pkg/domain-errors"
)

// parser adapts each typed Parse function to a common signature.
type parser struct {
	kind  string
	parse func(string) (uuid.UUID, error)
}

func parsers() []parser {
	return []parser{
		{"user ID", func(s string) (uuid.UUID, error) { v, err := ParseUserID(s); return uuid.UUID(v), err }},
		{"tenant ID", func(s string) (uuid.UUID, error) { v, err := ParseTenantID(s); return uuid.UUID(v), err }},
		{"envelope ID", func(s string) (uuid.UUID, error) { v, err := ParseEnvelopeID(s); return uuid.UUID(v), err }},
		{"signer ID", func(s string) (uuid.UUID, error) { v, err := ParseSignerID(s); return uuid.UUID(v), err }},
		{"document ID", func(s string) (uuid.UUID, error) { v, err := ParseDocumentID(s); return uuid.UUID(v), err }},
		{"invitation token ID", func(s string) (uuid.UUID, error) { v, err := ParseInvitationTokenID(s); return uuid.UUID(v), err }},
		{"outbox event ID", func(s string) (uuid.UUID, error) { v, err := ParseOutboxEventID(s); return uuid.UUID(v), err }},
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	inputs := map[string]string{
		"empty":            "",
		"blank":            "\t  ",
		"nil uuid":         uuid.Nil.String(),
		"garbage":          "envelope-42",
		"quoted sql":       "'; DELETE FROM signers;--",
		"path":             "../../documents/lease.pdf",
		"embedded nul":     "3f2b8c1e\x00-4d5a-4c3b-9f1e-2a6b7c8d9e0f",
		"invalid utf8":     "\xff\xfe3f2b8c1e-4d5a-4c3b-9f1e-2a6b7c8d9e0f",
		"too long":         strings.Repeat("f", 200),
		"zero width space": "3f2b8c1e\u200b-4d5a-4c3b-9f1e-2a6b7c8d9e0f",
	}
	for _, p := range parsers() {
		for name, input := range inputs {
			t.Run(p.kind+"/"+name, func(t *testing.T) {
				_, err := p.parse(input)
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				assert.Contains(t, err.Error(), p.kind)
			})
		}
	}
}

func TestParseAcceptsCanonicalForms(t *testing.T) {
	raw := uuid.MustParse("3f2b8c1e-4d5a-4c3b-9f1e-2a6b7c8d9e0f")
	forms := []string{
		raw.String(),
		strings.ToUpper(raw.String()),
		"urn:uuid:" + raw.String(),
	}
	for _, p := range parsers() {
		for _, form := range forms {
			got, err := p.parse(form)
			require.NoError(t, err, "%s %q", p.kind, form)
			assert.Equal(t, raw, got)
		}
	}
}

func TestNilDetection(t *testing.T) {
	assert.True(t, EnvelopeID{}.IsNil())
	assert.True(t, SignerID{}.IsNil())
	assert.False(t, EnvelopeID(uuid.New()).IsNil())
	assert.False(t, OutboxEventID(uuid.New()).IsNil())
}

func TestIDs_MarshalAsPlainUUID(t *testing.T) {
	raw := uuid.New()
	text, err := EnvelopeID(raw).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, raw.String(), string(text))
	assert.Equal(t, raw.String(), DocumentID(raw).String())

	var signer SignerID
	require.NoError(t, signer.UnmarshalText([]byte(raw.String())))
	assert.Equal(t, SignerID(raw), signer)
}

func TestIDs_JSONRoundTrip(t *testing.T) {
	type payload struct {
		User     UserID            `json:"user"`
		Tenant   TenantID          `json:"tenant"`
		Envelope EnvelopeID        `json:"envelope"`
		Signer   SignerID          `json:"signer"`
		Document DocumentID        `json:"document"`
		Token    InvitationTokenID `json:"token"`
		Event    OutboxEventID     `json:"event"`
	}
	in := payload{
		User:     UserID(uuid.New()),
		Tenant:   TenantID(uuid.New()),
		Envelope: EnvelopeID(uuid.New()),
		Signer:   SignerID(uuid.New()),
		Document: DocumentID(uuid.New()),
		Token:    InvitationTokenID(uuid.New()),
		Event:    OutboxEventID(uuid.New()),
	}

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"envelope":"`+in.Envelope.String()+`"`)

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
}
