package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/util"
)

const (
	DefaultURL         = "https://quote-api.jup.ag/v6"
	DefaultSlippageBps = 50
	DefaultTimeout     = 10 * time.Second
)

// Client talks to the Jupiter swap API.
type Client struct {
	apiURL  string
	headers map[string]string
	http    *http.Client
}

type QuoteRequest struct {
	InputMint        string
	OutputMint       string
	Amount           uint64
	SlippageBps      int
	OnlyDirectRoutes bool
	MaxAccounts      int
}

type QuoteResponse struct {
	InputMint            string      `json:"inputMint"`
	InAmount             string      `json:"inAmount"`
	OutputMint           string      `json:"outputMint"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold"`
	SwapMode             string      `json:"swapMode"`
	SlippageBps          int         `json:"slippageBps"`
	PlatformFee          interface{} `json:"platformFee"`
	PriceImpactPct       string      `json:"priceImpactPct"`
	RoutePlan            []RoutePlan `json:"routePlan"`
	ContextSlot          int64       `json:"contextSlot"`
	TimeTaken            float64     `json:"timeTaken"`
}

type RoutePlan struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// SwapRequest asks the aggregator to assemble the transaction for a quote.
// QuoteResponse must be the quote body exactly as the aggregator sent it.
type SwapRequest struct {
	UserPublicKey             string          `json:"userPublicKey"`
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit,omitempty"`
	PrioritizationFeeLamports any             `json:"prioritizationFeeLamports,omitempty"`
	AsLegacyTransaction       bool            `json:"asLegacyTransaction,omitempty"`
}

type swapResponse struct {
	SwapTransaction           string `json:"swapTransaction"`
	LastValidBlockHeight      uint64 `json:"lastValidBlockHeight"`
	PrioritizationFeeLamports uint64 `json:"prioritizationFeeLamports"`
}

// StatusError is a non-200 answer from the aggregator.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to get successful response: status_code: %d, res_body: %s", e.StatusCode, e.Body)
}

// DecodeError is a 200 answer whose body could not be decoded.
type DecodeError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to unmarshal response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func NewClient(apiURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		apiURL: strings.TrimSuffix(util.IfEmptyElse(apiURL, DefaultURL), "/"),
		headers: map[string]string{
			"User-Agent": "solana-swap-gateway/1.0",
			"Accept":     "application/json",
		},
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	u, err := url.Parse(c.apiURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		jsonData, er := json.Marshal(body)
		if er != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", er)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make http call: %w", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: res.StatusCode, Body: string(bodyBytes)}
	}

	return bodyBytes, nil
}

// GetQuote returns the decoded quote together with the raw body, which is
// what the swap endpoint expects back.
func (c *Client) GetQuote(ctx context.Context, q QuoteRequest) (QuoteResponse, json.RawMessage, error) {
	queryParams := url.Values{}
	queryParams.Set("inputMint", q.InputMint)
	queryParams.Set("outputMint", q.OutputMint)
	queryParams.Set("amount", strconv.FormatUint(q.Amount, 10))
	queryParams.Set("slippageBps", strconv.Itoa(q.SlippageBps))
	if q.OnlyDirectRoutes {
		queryParams.Set("onlyDirectRoutes", "true")
	}
	if q.MaxAccounts > 0 {
		queryParams.Set("maxAccounts", strconv.Itoa(q.MaxAccounts))
	}

	bodyBytes, err := c.makeRequest(ctx, http.MethodGet, "/quote?"+queryParams.Encode(), nil)
	if err != nil {
		return QuoteResponse{}, nil, fmt.Errorf("failed to get quote from Jupiter: %w", err)
	}

	var resp QuoteResponse
	err = json.Unmarshal(bodyBytes, &resp)
	if err != nil {
		return QuoteResponse{}, nil, &DecodeError{StatusCode: http.StatusOK, Body: string(bodyBytes), Err: err}
	}

	return resp, json.RawMessage(bodyBytes), nil
}

// Swap returns the serialized, unsigned transaction for a quote.
func (c *Client) Swap(ctx context.Context, req SwapRequest) ([]byte, error) {
	bodyBytes, err := c.makeRequest(ctx, http.MethodPost, "/swap", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get swap transaction from Jupiter: %w", err)
	}

	var resp swapResponse
	err = json.Unmarshal(bodyBytes, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response carries no transaction")
	}

	tx, err := base64.StdEncoding.DecodeString(resp.SwapTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}
	return tx, nil
}

// PriorityFee parses the configured prioritization fee: "auto" or an
// integer amount of lamports.
func PriorityFee(s string) (any, error) {
	if s == "" || s == "auto" {
		return "auto", nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid priority fee %q: %w", s, err)
	}
	return v, nil
}
