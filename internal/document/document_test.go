package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/sentinel"
)

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    []byte
	deleted *s3.DeleteObjectInput
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = in
	return &s3.DeleteObjectOutput{}, f.err
}

type fakePresigner struct {
	expires time.Duration
}

func (f *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.amazonaws.com/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func TestS3StorePut(t *testing.T) {
	api := &fakeS3{}
	store := NewS3WithAPI(api, &fakePresigner{}, "docs")

	err := store.Put(context.Background(), "k/1.pdf", "application/pdf", strings.NewReader("%PDF"), 4)
	require.NoError(t, err)
	assert.Equal(t, "docs", *api.put.Bucket)
	assert.Equal(t, "k/1.pdf", *api.put.Key)
	assert.Equal(t, "application/pdf", *api.put.ContentType)
	assert.EqualValues(t, 4, *api.put.ContentLength)
	assert.Equal(t, "%PDF", string(api.body))
}

func TestS3StorePutWrapsError(t *testing.T) {
	store := NewS3WithAPI(&fakeS3{err: errors.New("access denied")}, &fakePresigner{}, "docs")
	err := store.Put(context.Background(), "k", "application/pdf", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestS3StorePresignUsesDefaultTTL(t *testing.T) {
	presigner := &fakePresigner{}
	store := NewS3WithAPI(&fakeS3{}, presigner, "docs")

	u, err := store.PresignGet(context.Background(), "k/1.pdf", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "k/1.pdf")
	assert.Equal(t, DefaultURLTTL, presigner.expires)
}

func TestS3StoreDelete(t *testing.T) {
	api := &fakeS3{}
	store := NewS3WithAPI(api, &fakePresigner{}, "docs")
	require.NoError(t, store.Delete(context.Background(), "k/1.pdf"))
	assert.Equal(t, "k/1.pdf", *api.deleted.Key)
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory("")

	_, err := store.PresignGet(ctx, "missing", time.Minute)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Put(ctx, "a/b.pdf", "application/pdf", bytes.NewReader([]byte("body")), 4))
	body, ct, ok := store.Get("a/b.pdf")
	require.True(t, ok)
	assert.Equal(t, "body", string(body))
	assert.Equal(t, "application/pdf", ct)

	u, err := store.PresignGet(ctx, "a/b.pdf", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "http://localhost/blobs/a/b.pdf?expires="))

	require.NoError(t, store.Delete(ctx, "a/b.pdf"))
	_, _, ok = store.Get("a/b.pdf")
	assert.False(t, ok)
}

func TestInMemoryStore_OpenChecksLink(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewInMemory("")
	store.clock = func() time.Time { return now }
	require.NoError(t, store.Put(ctx, "a/b.pdf", "application/pdf", bytes.NewReader([]byte("body")), 4))

	raw, err := store.PresignGet(ctx, "a/b.pdf", time.Minute)
	require.NoError(t, err)
	link, err := url.Parse(raw)
	require.NoError(t, err)
	expires := link.Query().Get("expires")
	signature := link.Query().Get("signature")

	t.Run("valid link opens the blob", func(t *testing.T) {
		body, ct, err := store.Open("a/b.pdf", expires, signature)
		require.NoError(t, err)
		assert.Equal(t, "body", string(body))
		assert.Equal(t, "application/pdf", ct)
	})

	t.Run("extended expiry is rejected", func(t *testing.T) {
		later := now.Add(24 * time.Hour).Format(time.RFC3339)
		_, _, err := store.Open("a/b.pdf", later, signature)
		assert.ErrorIs(t, err, ErrLinkInvalid)
	})

	t.Run("signature does not transfer to another key", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a/c.pdf", "application/pdf", bytes.NewReader([]byte("other")), 5))
		_, _, err := store.Open("a/c.pdf", expires, signature)
		assert.ErrorIs(t, err, ErrLinkInvalid)
	})

	t.Run("garbage signature is rejected", func(t *testing.T) {
		_, _, err := store.Open("a/b.pdf", expires, "not-hex")
		assert.ErrorIs(t, err, ErrLinkInvalid)
	})

	t.Run("expired link is rejected", func(t *testing.T) {
		store.clock = func() time.Time { return now.Add(2 * time.Minute) }
		defer func() { store.clock = func() time.Time { return now } }()
		_, _, err := store.Open("a/b.pdf", expires, signature)
		assert.ErrorIs(t, err, ErrLinkInvalid)
	})

	t.Run("deleted blob is not found", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "a/b.pdf"))
		_, _, err := store.Open("a/b.pdf", expires, signature)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestReadUpload(t *testing.T) {
	t.Run("hashes body and normalises content type", func(t *testing.T) {
		up, err := ReadUpload(strings.NewReader("hello"), "Text/Plain; charset=utf-8")
		require.NoError(t, err)
		sum := sha256.Sum256([]byte("hello"))
		assert.Equal(t, hex.EncodeToString(sum[:]), up.SHA256)
		assert.Equal(t, "text/plain", up.ContentType)
		assert.EqualValues(t, 5, up.Size())
	})

	t.Run("rejects unsupported type", func(t *testing.T) {
		_, err := ReadUpload(strings.NewReader("x"), "application/x-msdownload")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects empty body", func(t *testing.T) {
		_, err := ReadUpload(strings.NewReader(""), "application/pdf")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), MaxSizeBytes+1)
		_, err := ReadUpload(bytes.NewReader(big), "application/pdf")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestKey(t *testing.T) {
	tenant := id.TenantID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	env := id.EnvelopeID(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
	doc := id.DocumentID(uuid.MustParse("33333333-3333-3333-3333-333333333333"))
	assert.Equal(t,
		"tenants/11111111-1111-1111-1111-111111111111/envelopes/22222222-2222-2222-2222-222222222222/documents/33333333-3333-3333-3333-333333333333.pdf",
		Key(tenant, env, doc, "Contract.PDF"))
}
