package sealing

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "signature-service/pkg/domain"
)

type fakeKMS struct {
	input *kms.SignInput
	err   error
}

func (f *fakeKMS) Sign(_ context.Context, in *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	keyID := "arn:aws:kms:eu-west-1:111122223333:key/abcd"
	return &kms.SignOutput{Signature: []byte("sig"), KeyId: &keyID}, nil
}

type SealingSuite struct {
	suite.Suite
	envelopeID id.EnvelopeID
	signerID   id.SignerID
	signedAt   time.Time
}

func TestSealingSuite(t *testing.T) {
	suite.Run(t, new(SealingSuite))
}

func (s *SealingSuite) SetupTest() {
	s.envelopeID = id.EnvelopeID(uuid.New())
	s.signerID = id.SignerID(uuid.New())
	s.signedAt = time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
}

func (s *SealingSuite) TestDigestIgnoresDocumentOrderAndCase() {
	a := Digest(s.envelopeID, s.signerID, []string{"AA", "bb"}, s.signedAt)
	b := Digest(s.envelopeID, s.signerID, []string{"bb", "aa"}, s.signedAt)
	s.Equal(a, b)
	s.Len(a, 32)
}

func (s *SealingSuite) TestDigestBindsEveryField() {
	base := Digest(s.envelopeID, s.signerID, []string{"aa"}, s.signedAt)
	s.NotEqual(base, Digest(id.EnvelopeID(uuid.New()), s.signerID, []string{"aa"}, s.signedAt))
	s.NotEqual(base, Digest(s.envelopeID, id.SignerID(uuid.New()), []string{"aa"}, s.signedAt))
	s.NotEqual(base, Digest(s.envelopeID, s.signerID, []string{"ab"}, s.signedAt))
	s.NotEqual(base, Digest(s.envelopeID, s.signerID, []string{"aa"}, s.signedAt.Add(time.Nanosecond)))
}

func (s *SealingSuite) TestDigestUsesUTC() {
	local := s.signedAt.In(time.FixedZone("CET", 3600))
	s.Equal(
		Digest(s.envelopeID, s.signerID, nil, s.signedAt),
		Digest(s.envelopeID, s.signerID, nil, local),
	)
}

func (s *SealingSuite) TestKMSSealSignsDigest() {
	client := &fakeKMS{}
	sealer := NewKMS(client, "alias/signing")
	digest := Digest(s.envelopeID, s.signerID, []string{"aa"}, s.signedAt)

	seal, err := sealer.Seal(context.Background(), digest)
	s.Require().NoError(err)
	s.Equal([]byte("sig"), seal.Signature)
	s.Equal("arn:aws:kms:eu-west-1:111122223333:key/abcd", seal.KeyID)
	s.Equal("RSASSA_PSS_SHA_256", seal.Algorithm)

	s.Equal(types.MessageTypeDigest, client.input.MessageType)
	s.Equal(types.SigningAlgorithmSpecRsassaPssSha256, client.input.SigningAlgorithm)
	s.Equal("alias/signing", *client.input.KeyId)
	s.True(bytes.Equal(digest, client.input.Message))
}

func (s *SealingSuite) TestKMSRejectsWrongDigestLength() {
	_, err := NewKMS(&fakeKMS{}, "k").Seal(context.Background(), []byte("short"))
	s.Error(err)
}

func (s *SealingSuite) TestKMSWrapsError() {
	_, err := NewKMS(&fakeKMS{err: errors.New("throttled")}, "k").Seal(context.Background(), make([]byte, 32))
	s.ErrorContains(err, "throttled")
}

func (s *SealingSuite) TestHMACRoundTrip() {
	sealer, err := NewHMAC(bytes.Repeat([]byte("k"), 32), "")
	s.Require().NoError(err)
	digest := Digest(s.envelopeID, s.signerID, []string{"aa"}, s.signedAt)

	seal, err := sealer.Seal(context.Background(), digest)
	s.Require().NoError(err)
	s.Equal("local", seal.KeyID)
	s.Equal(AlgorithmHMACSHA256, seal.Algorithm)
	s.True(sealer.Verify(digest, seal.Signature))
	s.False(sealer.Verify(Digest(s.envelopeID, s.signerID, nil, s.signedAt), seal.Signature))
	s.NotEmpty(seal.Encoded())
}

func (s *SealingSuite) TestHMACKeyIDSeparatesKeys() {
	secret := bytes.Repeat([]byte("k"), 32)
	first, err := NewHMAC(secret, "2026-01")
	s.Require().NoError(err)
	second, err := NewHMAC(secret, "2026-02")
	s.Require().NoError(err)
	digest := Digest(s.envelopeID, s.signerID, []string{"aa"}, s.signedAt)

	seal, err := first.Seal(context.Background(), digest)
	s.Require().NoError(err)
	s.False(second.Verify(digest, seal.Signature))
}

func (s *SealingSuite) TestHMACRejectsShortSecret() {
	_, err := NewHMAC([]byte("short"), "k")
	s.Error(err)
}
