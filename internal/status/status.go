package status

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
)

const DefaultInterval = time.Second

type StatusReader interface {
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (gateway.SignatureStatus, error)
}

// OnChainError means the transaction landed and its execution failed.
type OnChainError struct {
	Signature solana.Signature
	Slot      uint64
	Err       any
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain at slot %d: %v", e.Signature, e.Slot, e.Err)
}

type Poller struct {
	ledger     StatusReader
	interval   time.Duration
	commitment rpc.CommitmentType
	logger     logrus.FieldLogger
}

func NewPoller(ledger StatusReader, interval time.Duration, commitment rpc.CommitmentType, logger logrus.FieldLogger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Poller{
		ledger:     ledger,
		interval:   interval,
		commitment: commitment,
		logger:     logger.WithField("component", "status_poller"),
	}
}

func (p *Poller) Commitment() rpc.CommitmentType {
	return p.commitment
}

// WaitConfirmed polls until sig reaches the poller's commitment, fails on
// chain, or ctx ends. Failed polls are logged and retried on the next tick.
func (p *Poller) WaitConfirmed(ctx context.Context, sig solana.Signature) (gateway.SignatureStatus, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		st, err := p.ledger.GetSignatureStatus(ctx, sig)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return gateway.SignatureStatus{}, ctx.Err()
			}
			p.logger.WithField("signature", sig.String()).Warnf("failed to poll signature status: %v", err)
		case st.Failed():
			return st, &OnChainError{Signature: sig, Slot: st.Slot, Err: st.Err}
		case st.Reached(p.commitment):
			return st, nil
		}

		select {
		case <-ctx.Done():
			return gateway.SignatureStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
