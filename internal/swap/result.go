package swap

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/solana"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

type Kind string

const (
	KindInvalidRequest     Kind = "invalid_request"
	KindUnknownAsset       Kind = "unknown_asset"
	KindQuoteUnavailable   Kind = "quote_unavailable"
	KindBuildFailed        Kind = "build_failed"
	KindSignFailed         Kind = "sign_failed"
	KindAllEndpointsFailed Kind = "all_endpoints_failed"
	KindOperationRejected  Kind = "operation_rejected"
	// KindCanceled is a caller deadline or cancellation hit before anything
	// was submitted.
	KindCanceled Kind = "canceled"
)

type Stage string

const (
	StageValidating Stage = "validating"
	StageResolving  Stage = "resolving"
	StageQuoting    Stage = "quoting"
	StageBuilding   Stage = "building"
	StageSigning    Stage = "signing"
	StageSubmitting Stage = "submitting"
	StageConfirming Stage = "confirming"
)

// stageKinds is the kind reported for an error that carries no more
// specific classification.
var stageKinds = map[Stage]Kind{
	StageValidating: KindInvalidRequest,
	StageResolving:  KindUnknownAsset,
	StageQuoting:    KindQuoteUnavailable,
	StageBuilding:   KindBuildFailed,
	StageSigning:    KindSignFailed,
	StageSubmitting: KindAllEndpointsFailed,
	StageConfirming: KindOperationRejected,
}

type Request struct {
	FromAsset     string          `json:"fromAsset"`
	ToAsset       string          `json:"toAsset"`
	HumanAmount   decimal.Decimal `json:"amount"`
	SignerAddress string          `json:"signerAddress"`
}

type AttemptSummary struct {
	Endpoint string `json:"endpoint"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error"`
}

// Failure describes why and where a swap stopped.
type Failure struct {
	Kind            Kind             `json:"kind"`
	Stage           Stage            `json:"stage"`
	Message         string           `json:"message"`
	UpstreamStatus  int              `json:"upstreamStatus,omitempty"`
	UpstreamBody    string           `json:"upstreamBody,omitempty"`
	Attempts        []AttemptSummary `json:"attempts,omitempty"`
	SupportedAssets []string         `json:"supportedAssets,omitempty"`
	// FundsMayHaveMoved is set when the signed transaction may have reached
	// the ledger even though the swap is reported as failed.
	FundsMayHaveMoved bool `json:"fundsMayHaveMoved"`
}

type QuoteSummary struct {
	From                asset.ResolvedAsset `json:"from"`
	To                  asset.ResolvedAsset `json:"to"`
	InputBaseUnits      uint64              `json:"inputBaseUnits"`
	InputAmount         decimal.Decimal     `json:"inputAmount"`
	OutputBaseUnits     uint64              `json:"outputBaseUnits"`
	OutputAmount        decimal.Decimal     `json:"outputAmount"`
	MinimumOutputAmount decimal.Decimal     `json:"minimumOutputAmount"`
	SlippageBps         int                 `json:"slippageBps"`
	PriceImpactPct      string              `json:"priceImpactPct,omitempty"`
}

func summarize(q jupiter.Quote, human decimal.Decimal) *QuoteSummary {
	return &QuoteSummary{
		From:                q.From,
		To:                  q.To,
		InputBaseUnits:      q.InputBaseUnits,
		InputAmount:         human,
		OutputBaseUnits:     q.OutputBaseUnits,
		OutputAmount:        q.OutputAmount(),
		MinimumOutputAmount: q.MinimumOutputAmount(),
		SlippageBps:         q.SlippageBps,
		PriceImpactPct:      q.PriceImpactPct,
	}
}

// Result is the terminal outcome of one Execute call. Signature is set once
// a transaction was signed, including for failures after signing.
type Result struct {
	RequestID string        `json:"requestId"`
	Status    Status        `json:"status"`
	Signature string        `json:"signature,omitempty"`
	Ambiguous bool          `json:"ambiguous,omitempty"`
	Failure   *Failure      `json:"failure,omitempty"`
	Quote     *QuoteSummary `json:"quote,omitempty"`
}

// newFailure classifies err raised at stage. Component errors take
// precedence over the stage default: unknown asset, then endpoint
// exhaustion, then ledger rejection.
func newFailure(stage Stage, err error) *Failure {
	f := &Failure{
		Kind:    stageKinds[stage],
		Stage:   stage,
		Message: err.Error(),
	}

	var (
		unknown  *asset.UnknownAssetError
		all      *gateway.AllEndpointsFailedError
		rejected *gateway.RejectedError
	)
	switch {
	case errors.As(err, &unknown):
		f.Kind = KindUnknownAsset
		f.SupportedAssets = unknown.Supported
	case errors.As(err, &all):
		f.Kind = KindAllEndpointsFailed
		f.Attempts = summarizeAttempts(all.Attempts)
	case errors.As(err, &rejected):
		f.Kind = KindOperationRejected
	case errors.Is(err, jupiter.ErrAmountTooSmall):
		f.Kind = KindInvalidRequest
	}

	var (
		quoteErr *jupiter.QuoteUnavailableError
		buildErr *solana.BuildError
	)
	switch {
	case errors.As(err, &quoteErr):
		f.UpstreamStatus = quoteErr.StatusCode
		f.UpstreamBody = quoteErr.Body
	case errors.As(err, &buildErr):
		f.UpstreamStatus = buildErr.StatusCode
		f.UpstreamBody = buildErr.Body
	}

	return f
}

func summarizeAttempts(attempts []gateway.Attempt) []AttemptSummary {
	res := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		s := AttemptSummary{
			Endpoint: a.Endpoint,
			Outcome:  a.Outcome.String(),
		}
		if a.Err != nil {
			s.Error = a.Err.Error()
		}
		res = append(res, s)
	}
	return res
}
