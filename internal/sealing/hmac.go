package sealing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const AlgorithmHMACSHA256 = "HMAC_SHA_256"

// HMACSealer is the local-development sealer. The MAC key is derived from
// the configured secret and the key id, so rotating the id rotates the key.
type HMACSealer struct {
	key   []byte
	keyID string
}

func NewHMAC(secret []byte, keyID string) (*HMACSealer, error) {
	if len(secret) < 32 {
		return nil, errors.New("hmac seal secret must be at least 32 bytes")
	}
	if keyID == "" {
		keyID = "local"
	}
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("envelope-seal:"+keyID)), key); err != nil {
		return nil, fmt.Errorf("derive seal key: %w", err)
	}
	return &HMACSealer{key: key, keyID: keyID}, nil
}

func (s *HMACSealer) Seal(_ context.Context, digest []byte) (Seal, error) {
	return Seal{Signature: s.mac(digest), KeyID: s.keyID, Algorithm: AlgorithmHMACSHA256}, nil
}

// Verify reports whether sig seals digest under this key.
func (s *HMACSealer) Verify(digest, sig []byte) bool {
	return hmac.Equal(s.mac(digest), sig)
}

func (s *HMACSealer) mac(digest []byte) []byte {
	m := hmac.New(sha256.New, s.key)
	m.Write(digest)
	return m.Sum(nil)
}
