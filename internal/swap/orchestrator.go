// Package swap runs one swap request through resolution, quoting, building,
// signing, submission and confirmation, and reports a single terminal
// result.
package swap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	solanasdk "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/solana"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/status"
)

const DefaultConfirmTimeout = 60 * time.Second

type Config struct {
	ConfirmTimeout time.Duration `envconfig:"CONFIRMTIMEOUT" default:"60s"`
	PollInterval   time.Duration `envconfig:"POLLINTERVAL" default:"1s"`
	Commitment     string        `envconfig:"COMMITMENT" default:"confirmed"`
}

type Resolver interface {
	Resolve(ctx context.Context, identifier string) (asset.ResolvedAsset, error)
}

type Quoter interface {
	GetQuote(ctx context.Context, from, to asset.ResolvedAsset, human decimal.Decimal) (jupiter.Quote, error)
}

type TxBuilder interface {
	Build(ctx context.Context, quote jupiter.Quote, signerAddress solanasdk.PublicKey) (solana.UnsignedTransaction, error)
	Sign(ctx context.Context, unsigned solana.UnsignedTransaction, s signer.Signer) (solana.SignedTransaction, error)
}

type Submitter interface {
	SendTransaction(ctx context.Context, signed []byte) (solanasdk.Signature, error)
}

type Confirmer interface {
	WaitConfirmed(ctx context.Context, sig solanasdk.Signature) (gateway.SignatureStatus, error)
}

type Metrics interface {
	RecordSwap(status, kind, stage string, duration time.Duration)
	RecordStage(stage string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordSwap(string, string, string, time.Duration) {}
func (nopMetrics) RecordStage(string, time.Duration)                {}

type Orchestrator struct {
	resolver       Resolver
	quotes         Quoter
	builder        TxBuilder
	submitter      Submitter
	confirmer      Confirmer
	confirmTimeout time.Duration
	metrics        Metrics
	logger         logrus.FieldLogger
}

func NewOrchestrator(
	resolver Resolver,
	quotes Quoter,
	builder TxBuilder,
	submitter Submitter,
	confirmer Confirmer,
	confirmTimeout time.Duration,
	metrics Metrics,
	logger logrus.FieldLogger,
) *Orchestrator {
	if confirmTimeout <= 0 {
		confirmTimeout = DefaultConfirmTimeout
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Orchestrator{
		resolver:       resolver,
		quotes:         quotes,
		builder:        builder,
		submitter:      submitter,
		confirmer:      confirmer,
		confirmTimeout: confirmTimeout,
		metrics:        metrics,
		logger:         logger.WithField("component", "swap_orchestrator"),
	}
}

// execution tracks the current stage of one Execute call.
type execution struct {
	o          *Orchestrator
	logger     logrus.FieldLogger
	result     Result
	stage      Stage
	stageStart time.Time
}

func (e *execution) enter(stage Stage) {
	e.finish()
	e.stage = stage
	e.stageStart = time.Now()
	e.logger.WithField("stage", stage).Debug("entering stage")
}

// finish records the time spent in the current stage.
func (e *execution) finish() {
	if e.stage != "" {
		e.o.metrics.RecordStage(string(e.stage), time.Since(e.stageStart))
	}
}

func (e *execution) fail(f *Failure) Result {
	e.result.Status = StatusFailed
	e.result.Failure = f
	return e.result
}

func (e *execution) failErr(ctx context.Context, err error) Result {
	f := newFailure(e.stage, err)
	if interrupted(ctx, err) {
		f.Kind = KindCanceled
	}
	return e.fail(f)
}

func (e *execution) invalid(format string, args ...any) Result {
	return e.fail(&Failure{
		Kind:    KindInvalidRequest,
		Stage:   e.stage,
		Message: fmt.Sprintf(format, args...),
	})
}

// Execute runs req to a terminal result. The stages run strictly in order
// and none is retried here; endpoint fallback happens inside the gateway.
//
// Once a signed transaction has been handed to the gateway, running out of
// time yields StatusSubmitted with Ambiguous set, never StatusFailed.
// Confirmation waits at most the configured confirm timeout.
func (o *Orchestrator) Execute(ctx context.Context, req Request, s signer.Signer) Result {
	start := time.Now()
	e := &execution{
		o:      o,
		result: Result{RequestID: uuid.NewString()},
	}
	e.logger = o.logger.WithFields(logrus.Fields{
		"requestId": e.result.RequestID,
		"from":      req.FromAsset,
		"to":        req.ToAsset,
		"amount":    req.HumanAmount.String(),
	})
	e.logger.Info("executing swap")

	res := o.execute(ctx, e, req, s)
	e.finish()
	duration := time.Since(start)

	var kind, stage string
	if res.Failure != nil {
		kind = string(res.Failure.Kind)
		stage = string(res.Failure.Stage)
	}
	o.metrics.RecordSwap(string(res.Status), kind, stage, duration)

	fields := logrus.Fields{
		"status":    res.Status,
		"signature": res.Signature,
		"duration":  duration.String(),
	}
	switch {
	case res.Failure != nil:
		fields["kind"] = kind
		fields["stage"] = stage
		e.logger.WithFields(fields).Warnf("swap failed: %s", res.Failure.Message)
	case res.Ambiguous:
		e.logger.WithFields(fields).Warn("swap submitted, confirmation unknown")
	default:
		e.logger.WithFields(fields).Info("swap finished")
	}
	return res
}

func (o *Orchestrator) execute(ctx context.Context, e *execution, req Request, s signer.Signer) Result {
	e.enter(StageValidating)
	signerAddress, res, ok := e.validate(req, s)
	if !ok {
		return res
	}

	e.enter(StageResolving)
	from, err := o.resolver.Resolve(ctx, req.FromAsset)
	if err != nil {
		return e.failErr(ctx, err)
	}
	to, err := o.resolver.Resolve(ctx, req.ToAsset)
	if err != nil {
		return e.failErr(ctx, err)
	}
	if from.Address.Equals(to.Address) {
		return e.invalid("%s and %s resolve to the same asset %s", req.FromAsset, req.ToAsset, from.Address)
	}

	e.enter(StageQuoting)
	quote, err := o.quotes.GetQuote(ctx, from, to, req.HumanAmount)
	if err != nil {
		return e.failErr(ctx, err)
	}
	e.result.Quote = summarize(quote, req.HumanAmount)
	e.logger.WithFields(logrus.Fields{
		"inputBaseUnits":  quote.InputBaseUnits,
		"outputBaseUnits": quote.OutputBaseUnits,
		"minOutput":       quote.OutputBaseUnitsWithSlippage,
	}).Info("quote received")

	e.enter(StageBuilding)
	unsigned, err := o.builder.Build(ctx, quote, signerAddress)
	if err != nil {
		return e.failErr(ctx, err)
	}

	e.enter(StageSigning)
	signed, err := o.builder.Sign(ctx, unsigned, s)
	if err != nil {
		return e.failErr(ctx, err)
	}
	e.result.Signature = signed.Signature.String()
	e.logger = e.logger.WithField("signature", e.result.Signature)

	e.enter(StageSubmitting)
	sig, err := o.submitter.SendTransaction(ctx, signed.Payload)
	if err != nil {
		if interrupted(ctx, err) {
			if neverSent(err) {
				return e.failErr(ctx, err)
			}
			return e.submitted()
		}
		f := newFailure(StageSubmitting, err)
		f.FundsMayHaveMoved = f.Kind != KindOperationRejected
		return e.fail(f)
	}
	if sig != signed.Signature {
		e.logger.WithField("reported", sig.String()).Warn("gateway reported a different signature than signed")
	}

	e.enter(StageConfirming)
	confirmCtx, cancel := context.WithTimeout(ctx, o.confirmTimeout)
	defer cancel()

	_, err = o.confirmer.WaitConfirmed(confirmCtx, signed.Signature)
	if err != nil {
		var onChain *status.OnChainError
		if errors.As(err, &onChain) {
			return e.fail(&Failure{
				Kind:    KindOperationRejected,
				Stage:   StageConfirming,
				Message: err.Error(),
			})
		}
		return e.submitted()
	}

	e.result.Status = StatusConfirmed
	return e.result
}

func (e *execution) submitted() Result {
	e.result.Status = StatusSubmitted
	e.result.Ambiguous = true
	return e.result
}

func (e *execution) validate(req Request, s signer.Signer) (solanasdk.PublicKey, Result, bool) {
	if strings.TrimSpace(req.FromAsset) == "" || strings.TrimSpace(req.ToAsset) == "" {
		return solanasdk.PublicKey{}, e.invalid("fromAsset and toAsset are required"), false
	}
	if strings.EqualFold(strings.TrimSpace(req.FromAsset), strings.TrimSpace(req.ToAsset)) {
		return solanasdk.PublicKey{}, e.invalid("fromAsset and toAsset are the same: %s", req.FromAsset), false
	}
	if !req.HumanAmount.IsPositive() {
		return solanasdk.PublicKey{}, e.invalid("amount must be greater than zero, got %s", req.HumanAmount), false
	}

	signerAddress, err := solanasdk.PublicKeyFromBase58(req.SignerAddress)
	if err != nil {
		return solanasdk.PublicKey{}, e.invalid("invalid signer address %q: %v", req.SignerAddress, err), false
	}
	if s == nil {
		return solanasdk.PublicKey{}, e.invalid("no signer available"), false
	}
	if !s.PublicKey().Equals(signerAddress) {
		return solanasdk.PublicKey{}, e.invalid("signer does not control %s", signerAddress), false
	}
	return signerAddress, Result{}, true
}

// interrupted reports whether err stems from ctx ending.
func interrupted(ctx context.Context, err error) bool {
	if ctx.Err() == nil {
		return false
	}
	var ie *gateway.InterruptedError
	return errors.As(err, &ie) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// neverSent reports whether the gateway gave up before contacting any
// endpoint, so the payload never left the process.
func neverSent(err error) bool {
	var ie *gateway.InterruptedError
	return errors.As(err, &ie) && len(ie.Attempts) == 0
}
