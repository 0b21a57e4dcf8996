package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	solanasdk "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/balance"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/swap"
)

type fakeSigner struct {
	pub solanasdk.PublicKey
}

func (f fakeSigner) PublicKey() solanasdk.PublicKey { return f.pub }

func (f fakeSigner) Sign(context.Context, []byte) ([]byte, error) {
	return nil, errors.New("not implemented")
}

type fakeSwapper struct {
	result      swap.Result
	got         swap.Request
	gotSigner   signer.Signer
	gotDeadline time.Duration
}

func (f *fakeSwapper) Execute(ctx context.Context, req swap.Request, s signer.Signer) swap.Result {
	f.got = req
	f.gotSigner = s
	if d, ok := ctx.Deadline(); ok {
		f.gotDeadline = time.Until(d)
	}
	return f.result
}

type fakeBalances struct {
	holding balance.Holding
	err     error
	owner   string
	asset   string
}

func (f *fakeBalances) Balance(_ context.Context, owner, asset string) (balance.Holding, error) {
	f.owner = owner
	f.asset = asset
	return f.holding, f.err
}

type testServer struct {
	srv      *Server
	swaps    *fakeSwapper
	balances *fakeBalances
	signer   fakeSigner
}

func newTestServer(checks map[string]HealthCheck) *testServer {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	ts := &testServer{
		swaps:    &fakeSwapper{},
		balances: &fakeBalances{},
		signer:   fakeSigner{pub: solanasdk.NewWallet().PublicKey()},
	}
	ts.srv = NewServer(Config{
		DefaultDeadline: 30 * time.Second,
		MaxDeadline:     time.Minute,
	}, ts.swaps, ts.signer, ts.balances, checks, logger)
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSwap_Confirmed(t *testing.T) {
	ts := newTestServer(nil)
	ts.swaps.result = swap.Result{RequestID: "req-1", Status: swap.StatusConfirmed, Signature: "sig"}

	rec := ts.do(http.MethodPost, "/v1/swap", `{"fromAsset":"SOL","toAsset":"USDC","amount":0.001,"signerAddress":"`+ts.signer.pub.String()+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var res swap.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, swap.StatusConfirmed, res.Status)
	assert.Equal(t, "sig", res.Signature)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	assert.Equal(t, "SOL", ts.swaps.got.FromAsset)
	assert.Equal(t, "USDC", ts.swaps.got.ToAsset)
	assert.True(t, decimal.RequireFromString("0.001").Equal(ts.swaps.got.HumanAmount))
	assert.Equal(t, ts.signer, ts.swaps.gotSigner)
	assert.InDelta(t, (30 * time.Second).Seconds(), ts.swaps.gotDeadline.Seconds(), 1)
}

func TestSwap_Submitted(t *testing.T) {
	ts := newTestServer(nil)
	ts.swaps.result = swap.Result{Status: swap.StatusSubmitted, Signature: "sig", Ambiguous: true}

	rec := ts.do(http.MethodPost, "/v1/swap", `{"fromAsset":"SOL","toAsset":"USDC","amount":"1.5","deadlineMs":5000}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ambiguous":true`)
	assert.Equal(t, ts.signer.pub.String(), ts.swaps.got.SignerAddress)
	assert.True(t, decimal.RequireFromString("1.5").Equal(ts.swaps.got.HumanAmount))
	assert.InDelta(t, 5, ts.swaps.gotDeadline.Seconds(), 1)
}

func TestSwap_DeadlineIsCapped(t *testing.T) {
	ts := newTestServer(nil)
	ts.swaps.result = swap.Result{Status: swap.StatusConfirmed}

	rec := ts.do(http.MethodPost, "/v1/swap", `{"fromAsset":"SOL","toAsset":"USDC","amount":"1","deadlineMs":3600000}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, time.Minute.Seconds(), ts.swaps.gotDeadline.Seconds(), 1)
}

func TestSwap_FailureStatus(t *testing.T) {
	tests := []struct {
		kind swap.Kind
		code int
	}{
		{swap.KindInvalidRequest, http.StatusBadRequest},
		{swap.KindUnknownAsset, http.StatusBadRequest},
		{swap.KindQuoteUnavailable, http.StatusBadGateway},
		{swap.KindBuildFailed, http.StatusBadGateway},
		{swap.KindSignFailed, http.StatusInternalServerError},
		{swap.KindAllEndpointsFailed, http.StatusServiceUnavailable},
		{swap.KindOperationRejected, http.StatusUnprocessableEntity},
		{swap.KindCanceled, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ts := newTestServer(nil)
			ts.swaps.result = swap.Result{
				Status:  swap.StatusFailed,
				Failure: &swap.Failure{Kind: tt.kind, Stage: swap.StageQuoting, Message: "boom"},
			}

			rec := ts.do(http.MethodPost, "/v1/swap", `{"fromAsset":"SOL","toAsset":"USDC","amount":"1"}`)

			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), fmt.Sprintf(`"kind":%q`, tt.kind))
		})
	}
}

func TestSwap_BadBody(t *testing.T) {
	ts := newTestServer(nil)

	for _, body := range []string{
		`not json`,
		`{"fromAsset":"SOL","toAsset":"USDC","amount":"1e9"}`,
		`{"fromAsset":"SOL","toAsset":"USDC"}`,
	} {
		rec := ts.do(http.MethodPost, "/v1/swap", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, ts.swaps.got.FromAsset)
}

func TestBalance(t *testing.T) {
	ts := newTestServer(nil)
	owner := solanasdk.NewWallet().PublicKey().String()
	ts.balances.holding = balance.Holding{
		Owner:     owner,
		Asset:     asset.NativeMint.String(),
		BaseUnits: 1500,
		Decimals:  9,
		Amount:    decimal.RequireFromString("0.0000015"),
	}

	rec := ts.do(http.MethodGet, "/v1/balance/"+owner+"?asset=SOL", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, owner, ts.balances.owner)
	assert.Equal(t, "SOL", ts.balances.asset)

	var got balance.Holding
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(1500), got.BaseUnits)
	assert.Contains(t, rec.Body.String(), `"baseUnits":"1500"`)
}

func TestBalance_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"invalid owner", fmt.Errorf("%w %q", balance.ErrInvalidOwner, "x"), http.StatusBadRequest, "invalid_request"},
		{"unknown asset", &asset.UnknownAssetError{Identifier: "nope", Supported: []string{"SOL"}}, http.StatusBadRequest, "unknown_asset"},
		{"all endpoints", &gateway.AllEndpointsFailedError{Operation: gateway.OpGetBalance}, http.StatusServiceUnavailable, "all_endpoints_failed"},
		{"rejected", &gateway.RejectedError{Operation: gateway.OpGetBalance, Message: "bad"}, http.StatusUnprocessableEntity, "operation_rejected"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(nil)
			ts.balances.err = tt.err

			rec := ts.do(http.MethodGet, "/v1/balance/x", "")

			assert.Equal(t, tt.code, rec.Code)
			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body.Kind)
		})
	}

	ts := newTestServer(nil)
	rec := ts.do(http.MethodGet, "/v1/balance/x?deadlineMs=soon", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	healthy := newTestServer(map[string]HealthCheck{
		"redis": func(context.Context) error { return nil },
	})
	rec := healthy.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	degraded := newTestServer(map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	rec = degraded.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
