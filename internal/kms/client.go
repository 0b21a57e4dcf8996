package kms

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// API is the subset of the KMS SDK the client needs.
type API interface {
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Client unwraps signer key material encrypted under a KMS key.
type Client struct {
	api API
}

// New builds a Client from the default AWS credential chain. A non-empty
// endpoint points the client at a local KMS emulator with static test
// credentials.
func New(ctx context.Context, region, endpoint string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", "test"),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("kms: load aws config: %w", err)
	}

	return NewWithAPI(kms.NewFromConfig(cfg, func(o *kms.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})), nil
}

func NewWithAPI(api API) *Client {
	return &Client{api: api}
}

// Decrypt returns the plaintext of a ciphertext blob. The caller owns the
// returned slice and must wipe it once the key is sealed.
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("kms: empty ciphertext")
	}

	out, err := c.api.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("kms: decrypt: %w", err)
	}
	if len(out.Plaintext) == 0 {
		return nil, fmt.Errorf("kms: decrypt returned no plaintext")
	}
	return out.Plaintext, nil
}
