package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/gagliardetto/solana-go"
)

// Decrypter unwraps encrypted key material, e.g. internal/kms.Client.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type Config struct {
	PrivateKey        string `envconfig:"PRIVATEKEY"`
	KeypairPath       string `envconfig:"KEYPAIRPATH"`
	KMSCiphertextPath string `envconfig:"KMSCIPHERTEXTPATH"`
	KMSRegion         string `envconfig:"KMSREGION" default:"us-east-1"`
	KMSEndpoint       string `envconfig:"KMSENDPOINT"`
}

// Configured reports whether any key source is set.
func (c Config) Configured() bool {
	return c.PrivateKey != "" || c.KeypairPath != "" || c.KMSCiphertextPath != ""
}

// FromBase58 loads a keypair from its base-58 text form.
func FromBase58(s string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base58 key: %w", err)
	}
	return NewKeypairSigner(key)
}

// FromKeygenFile loads a keypair written by solana-keygen (a JSON array of
// 64 byte values).
func FromKeygenFile(path string) (*KeypairSigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file: %w", err)
	}
	defer memguard.WipeBytes(raw)

	key, err := parseKeygenJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse keypair file %s: %w", path, err)
	}
	return NewKeypairSigner(key)
}

// FromKMS decrypts a ciphertext file. The plaintext may be the raw 64-byte
// keypair, base-58 text or a solana-keygen JSON array.
func FromKMS(ctx context.Context, d Decrypter, ciphertextPath string) (*KeypairSigner, error) {
	ciphertext, err := os.ReadFile(ciphertextPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read ciphertext: %w", err)
	}

	plaintext, err := d.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(plaintext)

	return fromPlaintext(plaintext)
}

func fromPlaintext(plaintext []byte) (*KeypairSigner, error) {
	if len(plaintext) == 64 {
		key := make([]byte, 64)
		copy(key, plaintext)
		return NewKeypairSigner(key)
	}

	trimmed := bytes.TrimSpace(plaintext)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		key, err := parseKeygenJSON(trimmed)
		if err != nil {
			return nil, err
		}
		return NewKeypairSigner(key)
	}

	return FromBase58(string(trimmed))
}

func parseKeygenJSON(raw []byte) ([]byte, error) {
	var values []byte
	var ints []int
	err := json.Unmarshal(raw, &ints)
	if err != nil {
		return nil, err
	}
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		values = append(values, byte(v))
		ints[i] = 0
	}
	return values, nil
}

// Load picks the first configured key source: base-58 text, keypair file,
// then KMS ciphertext. d is only used for the KMS source.
func Load(ctx context.Context, cfg Config, d Decrypter) (*KeypairSigner, error) {
	switch {
	case cfg.PrivateKey != "":
		return FromBase58(cfg.PrivateKey)
	case cfg.KeypairPath != "":
		return FromKeygenFile(cfg.KeypairPath)
	case cfg.KMSCiphertextPath != "":
		if d == nil {
			return nil, fmt.Errorf("kms ciphertext configured without a kms client")
		}
		return FromKMS(ctx, d, cfg.KMSCiphertextPath)
	default:
		return nil, fmt.Errorf("no signer key configured")
	}
}
