package sealing

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// KMSAPI is the subset of *kms.Client used for sealing.
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// KMSSealer signs digests with an asymmetric KMS key. The private key never
// leaves KMS.
type KMSSealer struct {
	client KMSAPI
	keyID  string
}

func NewKMS(client KMSAPI, keyID string) *KMSSealer {
	return &KMSSealer{client: client, keyID: keyID}
}

func (s *KMSSealer) Seal(ctx context.Context, digest []byte) (Seal, error) {
	if len(digest) != 32 {
		return Seal{}, fmt.Errorf("kms seal: digest must be 32 bytes, got %d", len(digest))
	}
	out, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: types.SigningAlgorithmSpecRsassaPssSha256,
	})
	if err != nil {
		return Seal{}, fmt.Errorf("kms sign: %w", err)
	}
	keyID := s.keyID
	if out.KeyId != nil {
		keyID = *out.KeyId
	}
	return Seal{
		Signature: out.Signature,
		KeyID:     keyID,
		Algorithm: string(types.SigningAlgorithmSpecRsassaPssSha256),
	}, nil
}
