// Package sealing signs the digest a signer agreed to so the signature record
// can later be shown to be untampered.
//
// The digest covers the envelope id, the signer id, the sorted SHA-256 list
// of the envelope's documents and the signing instant. The seal is produced
// either by an asymmetric KMS key (production) or an HMAC secret (local).
package sealing

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"slices"
	"strings"
	"time"

	id "signature-service/pkg/domain"
)

const digestVersion = "sig-v1"

// Seal is the output of a Sealer.
type Seal struct {
	Signature []byte
	KeyID     string
	Algorithm string
}

// Encoded returns the signature as base64 for storage in evidence.
func (s Seal) Encoded() string {
	return base64.StdEncoding.EncodeToString(s.Signature)
}

type Sealer interface {
	Seal(ctx context.Context, digest []byte) (Seal, error)
}

// Digest is the canonical signing digest. Document order does not matter.
func Digest(envelopeID id.EnvelopeID, signerID id.SignerID, documentSHA256s []string, signedAt time.Time) []byte {
	docs := slices.Clone(documentSHA256s)
	for i := range docs {
		docs[i] = strings.ToLower(docs[i])
	}
	slices.Sort(docs)

	var b strings.Builder
	b.WriteString(digestVersion)
	b.WriteString("\nenvelope:")
	b.WriteString(envelopeID.String())
	b.WriteString("\nsigner:")
	b.WriteString(signerID.String())
	b.WriteString("\ndocuments:")
	b.WriteString(strings.Join(docs, ","))
	b.WriteString("\nsigned_at:")
	b.WriteString(signedAt.UTC().Format(time.RFC3339Nano))

	sum := sha256.Sum256([]byte(b.String()))
	return sum[:]
}

// DigestHex renders a digest for evidence records.
func DigestHex(digest []byte) string {
	return hex.EncodeToString(digest)
}
