package swap

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	solanasdk "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway/gatewaytest"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter/jupitertest"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/solana"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/status"
)

var freshBlockhash = solanasdk.Hash{0x42, 0x42, 0x42}

type swapRecord struct {
	status, kind, stage string
}

type recordingMetrics struct {
	mu     sync.Mutex
	swaps  []swapRecord
	stages []string
}

func (m *recordingMetrics) RecordSwap(status, kind, stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swaps = append(m.swaps, swapRecord{status, kind, stage})
}

func (m *recordingMetrics) RecordStage(stage string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages = append(m.stages, stage)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type harness struct {
	agg       *jupitertest.Aggregator
	ledgers   []*gatewaytest.Ledger
	signer    *signer.KeypairSigner
	metrics   *recordingMetrics
	submitter *hookedSubmitter
	orch      *Orchestrator
}

// newHarness wires the real components against n fake ledgers that serve a
// fresh blockhash and confirm submitted transactions immediately.
func newHarness(t *testing.T, n int, confirmTimeout time.Duration) *harness {
	t.Helper()
	logger := quietLogger()

	agg := jupitertest.NewAggregator()
	t.Cleanup(agg.Close)

	ledgers := make([]*gatewaytest.Ledger, 0, n)
	endpoints := make([]gateway.Endpoint, 0, n)
	for i := 0; i < n; i++ {
		l := gatewaytest.NewLedger().
			WithBlockhash(freshBlockhash).
			AcceptTransactions(gatewaytest.ConfirmImmediately)
		t.Cleanup(l.Close)
		ledgers = append(ledgers, l)
		endpoints = append(endpoints, gateway.Endpoint{URL: l.URL(), Timeout: time.Second})
	}

	set, err := gateway.NewEndpointSet(endpoints, 5*time.Millisecond)
	require.NoError(t, err)
	gw := gateway.NewClient(set, gateway.DefaultOptions(), logger, nil)

	key, err := solanasdk.NewRandomPrivateKey()
	require.NoError(t, err)
	s, err := signer.NewKeypairSigner(append([]byte(nil), key...))
	require.NoError(t, err)

	client := jupiter.NewClient(agg.URL(), time.Second)
	m := &recordingMetrics{}
	sub := &hookedSubmitter{next: gw}
	orch := NewOrchestrator(
		asset.NewResolver(gw, asset.NewMemoryCache(), logger),
		jupiter.NewQuoteService(client, 50, 30*time.Second),
		solana.NewBuilder(client, gw, "auto", logger),
		sub,
		status.NewPoller(gw, 10*time.Millisecond, rpc.CommitmentConfirmed, logger),
		confirmTimeout,
		m,
		logger,
	)

	return &harness{
		agg:       agg,
		ledgers:   ledgers,
		signer:    s,
		metrics:   m,
		submitter: sub,
		orch:      orch,
	}
}

// hookedSubmitter runs before, when set, ahead of every submission.
type hookedSubmitter struct {
	next   Submitter
	before func()
}

func (h *hookedSubmitter) SendTransaction(ctx context.Context, payload []byte) (solanasdk.Signature, error) {
	if h.before != nil {
		h.before()
	}
	return h.next.SendTransaction(ctx, payload)
}

func (h *harness) request(from, to, amount string) Request {
	return Request{
		FromAsset:     from,
		ToAsset:       to,
		HumanAmount:   decimal.RequireFromString(amount),
		SignerAddress: h.signer.PublicKey().String(),
	}
}

func TestExecute_Confirmed(t *testing.T) {
	h := newHarness(t, 1, time.Minute)

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusConfirmed, res.Status, "failure: %+v", res.Failure)
	assert.Nil(t, res.Failure)
	assert.False(t, res.Ambiguous)
	assert.NotEmpty(t, res.RequestID)

	submitted := h.ledgers[0].Submitted()
	require.Len(t, submitted, 1)
	tx, err := solanasdk.TransactionFromBytes(submitted[0])
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0].String(), res.Signature)
	assert.Equal(t, freshBlockhash, tx.Message.RecentBlockhash)

	require.NotNil(t, res.Quote)
	assert.Equal(t, uint64(1_000_000), res.Quote.InputBaseUnits)
	assert.Equal(t, uint64(149500), res.Quote.OutputBaseUnits)
	assert.Equal(t, "0.1495", res.Quote.OutputAmount.String())
	assert.Equal(t, "USDC", res.Quote.To.Symbol)

	assert.Equal(t, []swapRecord{{"confirmed", "", ""}}, h.metrics.swaps)
	assert.Equal(t, []string{"validating", "resolving", "quoting", "building", "signing", "submitting", "confirming"}, h.metrics.stages)
}

func TestExecute_UnknownAsset(t *testing.T) {
	h := newHarness(t, 1, time.Minute)

	res := h.orch.Execute(context.Background(), h.request("SOL", "doesnotexist", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindUnknownAsset, res.Failure.Kind)
	assert.Equal(t, StageResolving, res.Failure.Stage)
	assert.Contains(t, res.Failure.SupportedAssets, "USDC")
	assert.Contains(t, res.Failure.Message, "doesnotexist")
	assert.False(t, res.Failure.FundsMayHaveMoved)
	assert.Empty(t, res.Signature)

	assert.Zero(t, h.agg.QuoteCalls())
	assert.Zero(t, h.agg.SwapCalls())
	assert.Empty(t, h.ledgers[0].Calls())
}

func TestExecute_AllEndpointsFailAtSubmission(t *testing.T) {
	h := newHarness(t, 3, time.Minute)
	for _, l := range h.ledgers {
		l.Fail("sendTransaction", gatewaytest.NodeUnhealthy)
	}

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	require.NotNil(t, res.Failure)
	assert.Equal(t, KindAllEndpointsFailed, res.Failure.Kind)
	assert.Equal(t, StageSubmitting, res.Failure.Stage)
	assert.True(t, res.Failure.FundsMayHaveMoved)
	assert.NotEmpty(t, res.Signature)

	require.Len(t, res.Failure.Attempts, 3)
	for i, l := range h.ledgers {
		assert.Equal(t, gateway.Endpoint{URL: l.URL()}.Name(), res.Failure.Attempts[i].Endpoint)
		assert.Equal(t, "transport", res.Failure.Attempts[i].Outcome)
		assert.Equal(t, 1, l.CallCount("sendTransaction"))
	}
}

func TestExecute_DeadlineDuringConfirmation(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	h.ledgers[0].AcceptTransactions(gatewaytest.NeverConfirm)

	ctx, cancel := context.WithTimeout(context.Background(), 750*time.Millisecond)
	defer cancel()

	res := h.orch.Execute(ctx, h.request("SOL", "USDC", "0.001"), h.signer)

	assert.Equal(t, StatusSubmitted, res.Status)
	assert.True(t, res.Ambiguous)
	assert.Nil(t, res.Failure)
	assert.NotEmpty(t, res.Signature)
	assert.Len(t, h.ledgers[0].Submitted(), 1)
	assert.Equal(t, []swapRecord{{"submitted", "", ""}}, h.metrics.swaps)
}

func TestExecute_ConfirmTimeout(t *testing.T) {
	h := newHarness(t, 1, 100*time.Millisecond)
	h.ledgers[0].AcceptTransactions(gatewaytest.NeverConfirm)

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	assert.Equal(t, StatusSubmitted, res.Status)
	assert.True(t, res.Ambiguous)
}

func TestExecute_FailedOnChain(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	h.ledgers[0].AcceptTransactions(gatewaytest.FailOnChain)

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindOperationRejected, res.Failure.Kind)
	assert.Equal(t, StageConfirming, res.Failure.Stage)
	assert.NotEmpty(t, res.Signature)
}

func TestExecute_RejectedSubmission(t *testing.T) {
	h := newHarness(t, 2, time.Minute)
	for _, l := range h.ledgers {
		l.Fail("sendTransaction", gatewaytest.InsufficientFunds)
	}

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindOperationRejected, res.Failure.Kind)
	assert.Equal(t, StageSubmitting, res.Failure.Stage)
	assert.False(t, res.Failure.FundsMayHaveMoved)
	assert.Equal(t, 1, h.ledgers[0].CallCount("sendTransaction"))
	assert.Zero(t, h.ledgers[1].CallCount("sendTransaction"))
}

func TestExecute_QuoteUnavailable(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	h.agg.FailQuotes(http.StatusInternalServerError, `{"error":"no route"}`)

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindQuoteUnavailable, res.Failure.Kind)
	assert.Equal(t, StageQuoting, res.Failure.Stage)
	assert.Equal(t, http.StatusInternalServerError, res.Failure.UpstreamStatus)
	assert.Contains(t, res.Failure.UpstreamBody, "no route")
	assert.Zero(t, h.agg.SwapCalls())
	assert.Equal(t, []swapRecord{{"failed", "quote_unavailable", "quoting"}}, h.metrics.swaps)
}

func TestExecute_MalformedQuote(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	h.agg.FailQuotes(http.StatusOK, `{"inputMint": 12, "garbage"`)

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindQuoteUnavailable, res.Failure.Kind)
	assert.Equal(t, http.StatusOK, res.Failure.UpstreamStatus)
	assert.Equal(t, `{"inputMint": 12, "garbage"`, res.Failure.UpstreamBody)
	assert.Zero(t, h.agg.SwapCalls())
}

func TestExecute_BuildFailed(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	h.agg.FailSwaps(http.StatusBadRequest, `{"error":"invalid quote"}`)

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindBuildFailed, res.Failure.Kind)
	assert.Equal(t, StageBuilding, res.Failure.Stage)
	assert.Equal(t, http.StatusBadRequest, res.Failure.UpstreamStatus)
	require.NotNil(t, res.Quote)
	assert.Empty(t, h.ledgers[0].Submitted())
}

func TestExecute_BlockhashUnavailable(t *testing.T) {
	h := newHarness(t, 2, time.Minute)
	for _, l := range h.ledgers {
		l.Fail("getLatestBlockhash", gatewaytest.NodeUnhealthy)
	}

	res := h.orch.Execute(context.Background(), h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindAllEndpointsFailed, res.Failure.Kind)
	assert.Equal(t, StageSigning, res.Failure.Stage)
	assert.Len(t, res.Failure.Attempts, 2)
	assert.Empty(t, res.Signature)
}

func TestExecute_TooSmallAmount(t *testing.T) {
	h := newHarness(t, 1, time.Minute)

	res := h.orch.Execute(context.Background(), h.request("USDC", "SOL", "0.0000001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindInvalidRequest, res.Failure.Kind)
	assert.Equal(t, StageQuoting, res.Failure.Stage)
	assert.Zero(t, h.agg.QuoteCalls())
}

func TestExecute_CanceledBeforeSubmission(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := h.orch.Execute(ctx, h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, KindCanceled, res.Failure.Kind)
	assert.Equal(t, StageQuoting, res.Failure.Stage)
	assert.Empty(t, h.ledgers[0].Submitted())
}

func TestExecute_CanceledAtSubmission(t *testing.T) {
	h := newHarness(t, 2, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.submitter.before = cancel

	res := h.orch.Execute(ctx, h.request("SOL", "USDC", "0.001"), h.signer)

	require.Equal(t, StatusFailed, res.Status)
	assert.False(t, res.Ambiguous)
	assert.Equal(t, KindCanceled, res.Failure.Kind)
	assert.Equal(t, StageSubmitting, res.Failure.Stage)
	assert.False(t, res.Failure.FundsMayHaveMoved)
	assert.NotEmpty(t, res.Signature)
	for _, l := range h.ledgers {
		assert.Zero(t, l.CallCount("sendTransaction"))
	}
}

func TestExecute_InvalidRequest(t *testing.T) {
	h := newHarness(t, 1, time.Minute)
	other, err := solanasdk.NewRandomPrivateKey()
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    Request
		signer signer.Signer
		stage  Stage
	}{
		{
			name:   "zero amount",
			req:    h.request("SOL", "USDC", "0"),
			signer: h.signer,
			stage:  StageValidating,
		},
		{
			name:   "negative amount",
			req:    h.request("SOL", "USDC", "-1"),
			signer: h.signer,
			stage:  StageValidating,
		},
		{
			name:   "same asset",
			req:    h.request("usdc", "USDC", "1"),
			signer: h.signer,
			stage:  StageValidating,
		},
		{
			name:   "aliases of the same mint",
			req:    h.request("SOL", "WSOL", "1"),
			signer: h.signer,
			stage:  StageResolving,
		},
		{
			name: "bad signer address",
			req: Request{
				FromAsset:     "SOL",
				ToAsset:       "USDC",
				HumanAmount:   decimal.NewFromInt(1),
				SignerAddress: "not-an-address",
			},
			signer: h.signer,
			stage:  StageValidating,
		},
		{
			name: "signer does not control address",
			req: Request{
				FromAsset:     "SOL",
				ToAsset:       "USDC",
				HumanAmount:   decimal.NewFromInt(1),
				SignerAddress: other.PublicKey().String(),
			},
			signer: h.signer,
			stage:  StageValidating,
		},
		{
			name:   "no signer",
			req:    h.request("SOL", "USDC", "1"),
			signer: nil,
			stage:  StageValidating,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.orch.Execute(context.Background(), tt.req, tt.signer)

			require.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, KindInvalidRequest, res.Failure.Kind)
			assert.Equal(t, tt.stage, res.Failure.Stage)
		})
	}

	assert.Zero(t, h.agg.QuoteCalls())
	assert.Empty(t, h.ledgers[0].Submitted())
}
