// Package document stores envelope document bodies as blobs and hands out
// short-lived download links.
package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
)

const (
	// MaxSizeBytes bounds a single uploaded document.
	MaxSizeBytes = 25 << 20
	// DefaultURLTTL is the lifetime of a presigned download link.
	DefaultURLTTL = 15 * time.Minute
)

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/msword": true,
	"image/png":          true,
	"image/jpeg":         true,
	"text/plain":         true,
}

// BlobStore persists document bodies.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Key is the object key for a document. Tenant first so bucket policies and
// lifecycle rules can be scoped per tenant.
func Key(tenantID id.TenantID, envelopeID id.EnvelopeID, documentID id.DocumentID, name string) string {
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("tenants/%s/envelopes/%s/documents/%s%s", tenantID, envelopeID, documentID, ext)
}

// Upload is a fully buffered document body with its digest.
type Upload struct {
	Body        []byte
	ContentType string
	SHA256      string
}

func (u *Upload) Size() int64 { return int64(len(u.Body)) }

func (u *Upload) Reader() io.Reader { return bytes.NewReader(u.Body) }

// ReadUpload buffers r up to MaxSizeBytes and hashes it. contentType is the
// declared type; parameters such as charset are dropped.
func ReadUpload(r io.Reader, contentType string) (*Upload, error) {
	ct := strings.TrimSpace(strings.ToLower(strings.SplitN(contentType, ";", 2)[0]))
	if !allowedContentTypes[ct] {
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported content type")
	}
	body, err := io.ReadAll(io.LimitReader(r, MaxSizeBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read document")
	}
	if len(body) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "document is empty")
	}
	if len(body) > MaxSizeBytes {
		return nil, dErrors.New(dErrors.CodeValidation, "document exceeds 25MB")
	}
	sum := sha256.Sum256(body)
	return &Upload{Body: body, ContentType: ct, SHA256: hex.EncodeToString(sum[:])}, nil
}
