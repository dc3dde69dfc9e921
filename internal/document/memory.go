package document

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"signature-service/pkg/platform/sentinel"
)

// ErrLinkInvalid is returned by Open for expired or tampered links.
var ErrLinkInvalid = errors.New("blob link invalid or expired")

type memoryObject struct {
	body        []byte
	contentType string
}

// InMemoryStore keeps blobs in a map. PresignGet returns a URL carrying the
// key, the expiry and an HMAC over both, checked again by Open. The signing
// key lives only as long as the process, like the blobs.
type InMemoryStore struct {
	mu         sync.RWMutex
	objects    map[string]memoryObject
	baseURL    string
	clock      func() time.Time
	signingKey []byte
}

func NewInMemory(baseURL string) *InMemoryStore {
	if baseURL == "" {
		baseURL = "http://localhost/blobs"
	}
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return &InMemoryStore{
		objects:    make(map[string]memoryObject),
		baseURL:    baseURL,
		clock:      time.Now,
		signingKey: key,
	}
}

func (s *InMemoryStore) Put(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read blob: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{body: b, contentType: contentType}
	return nil
}

func (s *InMemoryStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("blob %s: %w", key, sentinel.ErrNotFound)
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	expires := s.clock().Add(ttl).UTC().Format(time.RFC3339)
	q := url.Values{
		"expires":   []string{expires},
		"signature": []string{s.sign(key, expires)},
	}
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

// Open checks a link produced by PresignGet and returns the blob behind it.
func (s *InMemoryStore) Open(key, expires, signature string) ([]byte, string, error) {
	want, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(want, s.mac(key, expires)) {
		return nil, "", ErrLinkInvalid
	}
	deadline, err := time.Parse(time.RFC3339, expires)
	if err != nil || s.clock().After(deadline) {
		return nil, "", ErrLinkInvalid
	}
	body, contentType, ok := s.Get(key)
	if !ok {
		return nil, "", fmt.Errorf("blob %s: %w", key, sentinel.ErrNotFound)
	}
	return body, contentType, nil
}

func (s *InMemoryStore) sign(key, expires string) string {
	return hex.EncodeToString(s.mac(key, expires))
}

func (s *InMemoryStore) mac(key, expires string) []byte {
	m := hmac.New(sha256.New, s.signingKey)
	m.Write([]byte(key))
	m.Write([]byte{0})
	m.Write([]byte(expires))
	return m.Sum(nil)
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns a stored body; used by tests and the local dev server.
func (s *InMemoryStore) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.body...), obj.contentType, true
}
