package solana

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
)

var ErrQuoteExpired = errors.New("quote expired")

// BuildError is a failure to turn a quote into an unsigned transaction.
// StatusCode and Body are set when the aggregator answered with an error.
type BuildError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("solana: build failed: %v", e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// SignError is a failure to refresh or sign a transaction. Gateway errors
// from the blockhash refresh stay reachable through errors.As.
type SignError struct {
	Err error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("solana: sign failed: %v", e.Err)
}

func (e *SignError) Unwrap() error { return e.Err }

type Aggregator interface {
	Swap(ctx context.Context, req jupiter.SwapRequest) ([]byte, error)
}

type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (gateway.Blockhash, error)
}

type UnsignedTransaction struct {
	Payload  []byte
	FeePayer solana.PublicKey
}

// SignedTransaction is ready for submission. Signature is the fee payer's
// signature, which identifies the transaction on the ledger.
type SignedTransaction struct {
	Payload   []byte
	Signature solana.Signature
	Blockhash gateway.Blockhash
}

type Builder struct {
	aggregator  Aggregator
	ledger      BlockhashSource
	priorityFee any
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewBuilder(aggregator Aggregator, ledger BlockhashSource, priorityFee any, logger logrus.FieldLogger) *Builder {
	return &Builder{
		aggregator:  aggregator,
		ledger:      ledger,
		priorityFee: priorityFee,
		logger:      logger.WithField("component", "tx_builder"),
		now:         time.Now,
	}
}

// Build asks the aggregator to assemble the swap transaction for quote and
// checks that signerAddress pays its fees.
func (b *Builder) Build(ctx context.Context, quote jupiter.Quote, signerAddress solana.PublicKey) (UnsignedTransaction, error) {
	if quote.Expired(b.now()) {
		return UnsignedTransaction{}, &BuildError{Err: ErrQuoteExpired}
	}

	payload, err := b.aggregator.Swap(ctx, jupiter.SwapRequest{
		UserPublicKey:             signerAddress.String(),
		QuoteResponse:             quote.Route,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: b.priorityFee,
	})
	if err != nil {
		res := &BuildError{Err: err}
		var statusErr *jupiter.StatusError
		if errors.As(err, &statusErr) {
			res.StatusCode = statusErr.StatusCode
			res.Body = statusErr.Body
		}
		return UnsignedTransaction{}, res
	}

	tx, err := solana.TransactionFromBytes(payload)
	if err != nil {
		return UnsignedTransaction{}, &BuildError{Err: fmt.Errorf("failed to decode aggregator transaction: %w", err)}
	}

	if tx.Message.Header.NumRequiredSignatures == 0 || len(tx.Message.AccountKeys) == 0 {
		return UnsignedTransaction{}, &BuildError{Err: fmt.Errorf("aggregator transaction requires no signature")}
	}

	feePayer := tx.Message.AccountKeys[0]
	if !feePayer.Equals(signerAddress) {
		return UnsignedTransaction{}, &BuildError{Err: fmt.Errorf("aggregator transaction fee payer %s is not the signer %s", feePayer, signerAddress)}
	}

	return UnsignedTransaction{
		Payload:  payload,
		FeePayer: feePayer,
	}, nil
}

// Sign replaces the transaction's recency anchor with the freshest
// blockhash, clears any existing signatures and has s sign it.
func (b *Builder) Sign(ctx context.Context, unsigned UnsignedTransaction, s signer.Signer) (SignedTransaction, error) {
	tx, err := solana.TransactionFromBytes(unsigned.Payload)
	if err != nil {
		return SignedTransaction{}, &SignError{Err: fmt.Errorf("failed to decode transaction: %w", err)}
	}

	bh, err := b.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return SignedTransaction{}, &SignError{Err: fmt.Errorf("failed to refresh blockhash: %w", err)}
	}

	b.logger.WithFields(logrus.Fields{
		"stale":     tx.Message.RecentBlockhash.String(),
		"refreshed": bh.Hash.String(),
	}).Debug("refreshed recent blockhash")

	tx.Message.RecentBlockhash = bh.Hash
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return SignedTransaction{}, &SignError{Err: fmt.Errorf("failed to encode message: %w", err)}
	}

	refreshed, err := tx.MarshalBinary()
	if err != nil {
		return SignedTransaction{}, &SignError{Err: fmt.Errorf("failed to encode transaction: %w", err)}
	}

	signed, err := s.Sign(ctx, refreshed)
	if err != nil {
		return SignedTransaction{}, &SignError{Err: err}
	}

	sig, err := verifySigned(signed, msg, s.PublicKey())
	if err != nil {
		return SignedTransaction{}, &SignError{Err: err}
	}

	return SignedTransaction{
		Payload:   signed,
		Signature: sig,
		Blockhash: bh,
	}, nil
}

// verifySigned checks that signed carries msg unchanged and that key, as
// fee payer, holds a valid signature in slot 0. The fee payer's signature
// is the transaction id.
func verifySigned(signed, msg []byte, key solana.PublicKey) (solana.Signature, error) {
	tx, err := solana.TransactionFromBytes(signed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	got, err := tx.Message.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to encode signed message: %w", err)
	}
	if string(got) != string(msg) {
		return solana.Signature{}, fmt.Errorf("signer altered the transaction message")
	}

	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(key) {
		return solana.Signature{}, fmt.Errorf("%s is not the fee payer", key)
	}
	if len(tx.Signatures) == 0 || !ed25519.Verify(key.Bytes(), msg, tx.Signatures[0][:]) {
		return solana.Signature{}, fmt.Errorf("fee payer signature does not verify for %s", key)
	}
	return tx.Signatures[0], nil
}
