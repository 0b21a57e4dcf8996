package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrNotRequiredSigner = errors.New("signer is not a required signer of the transaction")
	ErrDestroyed         = errors.New("signer key has been destroyed")
)

// Signer produces a signature for an unsigned Solana transaction. The key
// material never leaves the implementation.
type Signer interface {
	PublicKey() solana.PublicKey
	// Sign returns the transaction with the signer's signature slot filled.
	// Other slots are left as they are.
	Sign(ctx context.Context, unsignedTx []byte) ([]byte, error)
}

// KeypairSigner holds an ed25519 keypair sealed in a memguard enclave. The
// key is decrypted into locked memory only for the duration of one
// signature.
type KeypairSigner struct {
	mu      sync.Mutex
	enclave *memguard.Enclave
	pub     solana.PublicKey
}

// NewKeypairSigner seals a 64-byte solana keypair (seed || public key) and
// wipes key.
func NewKeypairSigner(key []byte) (*KeypairSigner, error) {
	defer memguard.WipeBytes(key)

	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid keypair length: %d", len(key))
	}

	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	pub := derived.Public().(ed25519.PublicKey)
	memguard.WipeBytes(derived)
	if !pub.Equal(ed25519.PublicKey(key[ed25519.SeedSize:])) {
		return nil, fmt.Errorf("keypair public half does not match its seed")
	}

	return &KeypairSigner{
		enclave: memguard.NewEnclave(key),
		pub:     solana.PublicKeyFromBytes(pub),
	}, nil
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.pub
}

func (s *KeypairSigner) Sign(ctx context.Context, unsignedTx []byte) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	tx, err := solana.TransactionFromBytes(unsignedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	slot := signerIndex(tx, s.pub)
	if slot < 0 {
		return nil, ErrNotRequiredSigner
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	sig, err := s.sign(msg)
	if err != nil {
		return nil, err
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[slot] = sig

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return signed, nil
}

func (s *KeypairSigner) sign(msg []byte) (solana.Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enclave == nil {
		return solana.Signature{}, ErrDestroyed
	}

	buf, err := s.enclave.Open()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("open enclave: %w", err)
	}
	defer buf.Destroy()

	var sig solana.Signature
	copy(sig[:], ed25519.Sign(ed25519.PrivateKey(buf.Bytes()), msg))
	return sig, nil
}

// Destroy drops the sealed key. Later Sign calls fail with ErrDestroyed.
func (s *KeypairSigner) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
}

// signerIndex returns the signature slot of key, or -1 when key is not
// among the required signers.
func signerIndex(tx *solana.Transaction, key solana.PublicKey) int {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(key) {
			return i
		}
	}
	return -1
}
