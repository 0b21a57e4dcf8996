package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway/gatewaytest"
)

var usdcMint = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

func TestGetMint(t *testing.T) {
	ledger := newLedger(t).WithMints(map[solana.PublicKey]uint8{usdcMint: 6})
	client, _ := newTestClient(t, time.Second, ledger)

	info, err := client.GetMint(context.Background(), usdcMint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), info.Decimals)
	assert.Equal(t, solana.TokenProgramID, info.Program)
	assert.Equal(t, usdcMint, info.Address)
}

func TestGetMint_UnknownAccountIsRejected(t *testing.T) {
	first := newLedger(t).WithMints(nil)
	second := newLedger(t).WithMints(map[solana.PublicKey]uint8{usdcMint: 6})
	client, _ := newTestClient(t, time.Second, first, second)

	_, err := client.GetMint(context.Background(), solana.SystemProgramID)

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 0, second.CallCount("getAccountInfo"))
}

func TestGetLatestBlockhash(t *testing.T) {
	hash := solana.Hash{9, 9, 9}
	ledger := newLedger(t).WithBlockhash(hash)
	client, _ := newTestClient(t, time.Second, ledger)

	bh, err := client.GetLatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, hash, bh.Hash)
	assert.Equal(t, uint64(2000), bh.LastValidBlockHeight)
}

func TestGetTokenAccountBalance(t *testing.T) {
	held := solana.NewWallet().PublicKey()
	ledger := newLedger(t).WithTokenBalances(map[solana.PublicKey]uint64{held: 1_500_000}, 6)
	client, _ := newTestClient(t, time.Second, ledger)

	amount, err := client.GetTokenAccountBalance(context.Background(), held)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000), amount)

	amount, err = client.GetTokenAccountBalance(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.Zero(t, amount)
}

func TestSendTransaction(t *testing.T) {
	ledger := newLedger(t).AcceptTransactions(gatewaytest.ConfirmImmediately)
	client, _ := newTestClient(t, time.Second, ledger)

	raw, want := signedTransfer(t)
	sig, err := client.SendTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, want, sig)
	require.Len(t, ledger.Submitted(), 1)
	assert.Equal(t, raw, ledger.Submitted()[0])

	status, err := client.GetSignatureStatus(context.Background(), sig)
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.False(t, status.Failed())
	assert.True(t, status.Reached(rpc.CommitmentConfirmed))
	assert.False(t, status.Reached(rpc.CommitmentFinalized))
}

func TestSendTransaction_AlreadyProcessedIsSuccess(t *testing.T) {
	ledger := newLedger(t)
	ledger.Fail("sendTransaction", gatewaytest.AlreadyProcessed)
	client, _ := newTestClient(t, time.Second, ledger)

	raw, want := signedTransfer(t)
	sig, err := client.SendTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, want, sig)
}

func TestSendTransaction_RejectedButLanded(t *testing.T) {
	ledger := newLedger(t).AcceptTransactions(gatewaytest.NeverConfirm)
	ledger.Fail("sendTransaction", gatewaytest.InsufficientFunds)
	client, _ := newTestClient(t, time.Second, ledger)

	raw, want := signedTransfer(t)
	ledger.MarkLanded(want)

	sig, err := client.SendTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, want, sig)
}

func TestSendTransaction_ResubmitAfterTimeout(t *testing.T) {
	first := newLedger(t)
	first.SetBehavior(gatewaytest.Hang)
	second := newLedger(t).AcceptTransactions(gatewaytest.ConfirmImmediately)
	client, _ := newTestClient(t, 150*time.Millisecond, first, second)

	raw, want := signedTransfer(t)
	sig, err := client.SendTransaction(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, want, sig)
	require.Len(t, second.Submitted(), 1)
	assert.Equal(t, raw, second.Submitted()[0])
}

func TestSignatureStatus_NotFoundAndFailed(t *testing.T) {
	ledger := newLedger(t).AcceptTransactions(gatewaytest.FailOnChain)
	client, _ := newTestClient(t, time.Second, ledger)

	status, err := client.GetSignatureStatus(context.Background(), solana.Signature{1})
	require.NoError(t, err)
	assert.False(t, status.Found)
	assert.False(t, status.Reached(rpc.CommitmentProcessed))

	raw, _ := signedTransfer(t)
	sig, err := client.SendTransaction(context.Background(), raw)
	require.NoError(t, err)

	status, err = client.GetSignatureStatus(context.Background(), sig)
	require.NoError(t, err)
	assert.True(t, status.Failed())
}
