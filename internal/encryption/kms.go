package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

type kmsAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	DescribeKey(ctx context.Context, params *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
}

// encryptionContext binds wrapped data keys to this service.
var encryptionContext = map[string]string{
	"Purpose": "Icebreaker-Cache",
	"Service": "Outreach-Backend",
}

// KMSKeyProvider does envelope encryption: the data key lives in Path only in
// KMS-wrapped form and is unwrapped in memory at startup.
type KMSKeyProvider struct {
	client kmsAPI
	keyID  string
	path   string
}

func NewKMSKeyProvider(client kmsAPI, keyID, path string) (*KMSKeyProvider, error) {
	if keyID == "" {
		return nil, fmt.Errorf("KMS_KEY_ID environment variable is required")
	}
	return &KMSKeyProvider{client: client, keyID: keyID, path: path}, nil
}

func (k *KMSKeyProvider) Key(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(k.path)
	if err == nil {
		return k.unwrap(ctx, strings.TrimSpace(string(raw)))
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read wrapped key: %w", err)
	}

	out, err := k.client.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:             aws.String(k.keyID),
		KeySpec:           types.DataKeySpecAes256,
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate data key: %w", err)
	}

	wrapped := base64.StdEncoding.EncodeToString(out.CiphertextBlob)
	if err := writeSecret(k.path, []byte(wrapped)); err != nil {
		return nil, err
	}
	return out.Plaintext, nil
}

func (k *KMSKeyProvider) unwrap(ctx context.Context, wrapped string) ([]byte, error) {
	blob, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("failed to decode wrapped key: %w", err)
	}

	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		KeyId:             aws.String(k.keyID),
		EncryptionContext: encryptionContext,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap data key: %w", err)
	}
	return out.Plaintext, nil
}

// ValidateKey checks that the KMS key exists and is accessible.
func (k *KMSKeyProvider) ValidateKey(ctx context.Context) error {
	_, err := k.client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(k.keyID)})
	if err != nil {
		return fmt.Errorf("failed to validate KMS key %s: %w", k.keyID, err)
	}
	return nil
}
