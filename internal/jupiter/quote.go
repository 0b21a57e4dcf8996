package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/util"
)

type Config struct {
	URL         string        `envconfig:"URL" default:"https://quote-api.jup.ag/v6"`
	SlippageBps int           `envconfig:"SLIPPAGEBPS" default:"50"`
	PriorityFee string        `envconfig:"PRIORITYFEE" default:"auto"`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10s"`
	QuoteTTL    time.Duration `envconfig:"QUOTETTL" default:"30s"`
}

// ErrAmountTooSmall is returned when the human amount truncates to zero
// base units of the source asset.
var ErrAmountTooSmall = errors.New("amount is below the smallest unit of the source asset")

// QuoteUnavailableError is any failure to obtain a usable quote from the
// aggregator. StatusCode and Body are set whenever the aggregator answered,
// including 200 answers that could not be used.
type QuoteUnavailableError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *QuoteUnavailableError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("quote unavailable: aggregator answered %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("quote unavailable: %v", e.Err)
}

func (e *QuoteUnavailableError) Unwrap() error { return e.Err }

// Quote is a priced route for one swap.
type Quote struct {
	From                        asset.ResolvedAsset
	To                          asset.ResolvedAsset
	InputBaseUnits              uint64
	OutputBaseUnits             uint64
	OutputBaseUnitsWithSlippage uint64
	SlippageBps                 int
	PriceImpactPct              string
	// Route is the aggregator's quote body, passed back verbatim at build time.
	Route           json.RawMessage
	ExpiresNotAfter *time.Time
}

// Expired reports whether the quote can no longer be built.
func (q Quote) Expired(now time.Time) bool {
	return q.ExpiresNotAfter != nil && now.After(*q.ExpiresNotAfter)
}

func (q Quote) OutputAmount() decimal.Decimal {
	return util.FromBaseUnits(q.OutputBaseUnits, q.To.Decimals)
}

func (q Quote) MinimumOutputAmount() decimal.Decimal {
	return util.FromBaseUnits(q.OutputBaseUnitsWithSlippage, q.To.Decimals)
}

type QuoteService struct {
	client      *Client
	slippageBps int
	ttl         time.Duration
	now         func() time.Time
}

func NewQuoteService(client *Client, slippageBps int, ttl time.Duration) *QuoteService {
	if slippageBps <= 0 {
		slippageBps = DefaultSlippageBps
	}
	return &QuoteService{
		client:      client,
		slippageBps: slippageBps,
		ttl:         ttl,
		now:         time.Now,
	}
}

// GetQuote prices swapping human units of from into to. The amount is
// truncated to from's precision before it is sent.
func (s *QuoteService) GetQuote(ctx context.Context, from, to asset.ResolvedAsset, human decimal.Decimal) (Quote, error) {
	amount, err := util.ToBaseUnits(human, from.Decimals)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to convert amount: %w", err)
	}
	if amount == 0 {
		return Quote{}, ErrAmountTooSmall
	}

	fetchedAt := s.now()
	resp, raw, err := s.client.GetQuote(ctx, QuoteRequest{
		InputMint:   from.Address.String(),
		OutputMint:  to.Address.String(),
		Amount:      amount,
		SlippageBps: s.slippageBps,
	})
	if err != nil {
		return Quote{}, unavailable(err)
	}

	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return Quote{}, malformed(raw, fmt.Errorf("malformed outAmount %q: %w", resp.OutAmount, err))
	}
	minOut, err := strconv.ParseUint(resp.OtherAmountThreshold, 10, 64)
	if err != nil {
		return Quote{}, malformed(raw, fmt.Errorf("malformed otherAmountThreshold %q: %w", resp.OtherAmountThreshold, err))
	}
	if resp.InputMint != from.Address.String() || resp.OutputMint != to.Address.String() {
		return Quote{}, malformed(raw, fmt.Errorf("quote is for %s -> %s", resp.InputMint, resp.OutputMint))
	}

	q := Quote{
		From:                        from,
		To:                          to,
		InputBaseUnits:              amount,
		OutputBaseUnits:             out,
		OutputBaseUnitsWithSlippage: minOut,
		SlippageBps:                 resp.SlippageBps,
		PriceImpactPct:              resp.PriceImpactPct,
		Route:                       raw,
	}
	if s.ttl > 0 {
		exp := fetchedAt.Add(s.ttl)
		q.ExpiresNotAfter = &exp
	}
	return q, nil
}

func unavailable(err error) *QuoteUnavailableError {
	res := &QuoteUnavailableError{Err: err}
	var statusErr *StatusError
	var decodeErr *DecodeError
	switch {
	case errors.As(err, &statusErr):
		res.StatusCode = statusErr.StatusCode
		res.Body = statusErr.Body
	case errors.As(err, &decodeErr):
		res.StatusCode = decodeErr.StatusCode
		res.Body = decodeErr.Body
	}
	return res
}

func malformed(raw json.RawMessage, err error) *QuoteUnavailableError {
	return &QuoteUnavailableError{StatusCode: http.StatusOK, Body: string(raw), Err: err}
}
