// Package gatewaytest provides an in-process Solana JSON-RPC ledger for
// tests of code that talks to the gateway.
package gatewaytest

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
)

// RPCError is the JSON-RPC error object the ledger answers with.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Handler answers one JSON-RPC method. Returning a non-nil error sends it
// as the JSON-RPC error object.
type Handler func(params []json.RawMessage) (any, *RPCError)

// Behavior is how the ledger treats every incoming request.
type Behavior int

const (
	// Serve dispatches to the registered handlers.
	Serve Behavior = iota
	// Hang holds every request until the client gives up.
	Hang
	// Unavailable answers every request with HTTP 503 and no body.
	Unavailable
)

// Confirmation modes for transactions accepted by AcceptTransactions.
const (
	ConfirmImmediately = iota
	NeverConfirm
	FailOnChain
)

var (
	MethodNotFound    = &RPCError{Code: -32601, Message: "Method not found"}
	InsufficientFunds = &RPCError{Code: -32002, Message: "Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1"}
	AlreadyProcessed  = &RPCError{Code: -32002, Message: "Transaction simulation failed: This transaction has already been processed"}
	NodeUnhealthy     = &RPCError{Code: -32005, Message: "Node is behind by 120 slots"}
)

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Ledger is a fake Solana RPC endpoint.
type Ledger struct {
	srv *httptest.Server

	mu          sync.Mutex
	behavior    Behavior
	handlers    map[string]Handler
	calls       []string
	submitted   [][]byte
	statuses    map[string]map[string]any
	confirmMode int
	slot        uint64
}

func NewLedger() *Ledger {
	l := &Ledger{
		handlers: make(map[string]Handler),
		statuses: make(map[string]map[string]any),
		slot:     1000,
	}
	l.srv = httptest.NewServer(http.HandlerFunc(l.serveHTTP))
	return l
}

func (l *Ledger) URL() string {
	return l.srv.URL
}

func (l *Ledger) Close() {
	l.srv.Close()
}

func (l *Ledger) SetBehavior(b Behavior) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.behavior = b
}

// Handle registers h for method, replacing any previous handler.
func (l *Ledger) Handle(method string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[method] = h
}

// Fail makes method answer with rpcErr.
func (l *Ledger) Fail(method string, rpcErr *RPCError) {
	l.Handle(method, func([]json.RawMessage) (any, *RPCError) {
		return nil, rpcErr
	})
}

// Calls returns every method received, in arrival order.
func (l *Ledger) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (l *Ledger) CallCount(method string) int {
	n := 0
	for _, c := range l.Calls() {
		if c == method {
			n++
		}
	}
	return n
}

// Submitted returns the raw transactions accepted by sendTransaction.
func (l *Ledger) Submitted() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.submitted))
	copy(out, l.submitted)
	return out
}

func (l *Ledger) WithBalance(lamports uint64) *Ledger {
	l.Handle("getBalance", func([]json.RawMessage) (any, *RPCError) {
		return l.withContext(lamports), nil
	})
	return l
}

func (l *Ledger) WithBlockhash(hash solana.Hash) *Ledger {
	l.Handle("getLatestBlockhash", func([]json.RawMessage) (any, *RPCError) {
		return l.withContext(map[string]any{
			"blockhash":            hash.String(),
			"lastValidBlockHeight": 2000,
		}), nil
	})
	return l
}

// WithMints serves getAccountInfo for SPL token mints with the given decimals.
// Unknown accounts are answered with a null value.
func (l *Ledger) WithMints(mints map[solana.PublicKey]uint8) *Ledger {
	l.Handle("getAccountInfo", func(params []json.RawMessage) (any, *RPCError) {
		var addr string
		if len(params) == 0 || json.Unmarshal(params[0], &addr) != nil {
			return nil, &RPCError{Code: -32602, Message: "Invalid params"}
		}

		for mint, decimals := range mints {
			if mint.String() == addr {
				return l.withContext(map[string]any{
					"data":       []string{base64.StdEncoding.EncodeToString(MintData(decimals)), "base64"},
					"executable": false,
					"lamports":   1461600,
					"owner":      solana.TokenProgramID.String(),
					"rentEpoch":  0,
					"space":      82,
				}), nil
			}
		}
		return l.withContext(nil), nil
	})
	return l
}

// WithTokenBalances serves getTokenAccountBalance; accounts missing from
// balances are reported the way mainnet nodes report them.
func (l *Ledger) WithTokenBalances(balances map[solana.PublicKey]uint64, decimals uint8) *Ledger {
	l.Handle("getTokenAccountBalance", func(params []json.RawMessage) (any, *RPCError) {
		var addr string
		if len(params) == 0 || json.Unmarshal(params[0], &addr) != nil {
			return nil, &RPCError{Code: -32602, Message: "Invalid params"}
		}
		for acc, amount := range balances {
			if acc.String() == addr {
				return l.withContext(map[string]any{
					"amount":         strconv.FormatUint(amount, 10),
					"decimals":       decimals,
					"uiAmountString": "",
				}), nil
			}
		}
		return nil, &RPCError{Code: -32602, Message: "Invalid param: could not find account"}
	})
	return l
}

// AcceptTransactions records submitted transactions and answers status
// queries for them according to mode.
func (l *Ledger) AcceptTransactions(mode int) *Ledger {
	l.mu.Lock()
	l.confirmMode = mode
	l.mu.Unlock()

	l.Handle("sendTransaction", func(params []json.RawMessage) (any, *RPCError) {
		raw, tx, rpcErr := decodeTx(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		sig := tx.Signatures[0].String()

		l.mu.Lock()
		defer l.mu.Unlock()
		l.submitted = append(l.submitted, raw)
		switch l.confirmMode {
		case ConfirmImmediately:
			l.statuses[sig] = map[string]any{"slot": l.slot, "confirmations": 1, "err": nil, "confirmationStatus": "confirmed"}
		case FailOnChain:
			l.statuses[sig] = map[string]any{
				"slot":               l.slot,
				"confirmations":      1,
				"err":                map[string]any{"InstructionError": []any{0, map[string]any{"Custom": 6001}}},
				"confirmationStatus": "confirmed",
			}
		}
		return sig, nil
	})

	l.Handle("getSignatureStatuses", func(params []json.RawMessage) (any, *RPCError) {
		var sigs []string
		if len(params) == 0 || json.Unmarshal(params[0], &sigs) != nil {
			return nil, &RPCError{Code: -32602, Message: "Invalid params"}
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		values := make([]any, 0, len(sigs))
		for _, s := range sigs {
			if st, ok := l.statuses[s]; ok {
				values = append(values, st)
			} else {
				values = append(values, nil)
			}
		}
		return l.withContextLocked(values), nil
	})
	return l
}

// MarkLanded records sig as confirmed without a submission.
func (l *Ledger) MarkLanded(sig solana.Signature) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[sig.String()] = map[string]any{"slot": l.slot, "confirmations": nil, "err": nil, "confirmationStatus": "finalized"}
}

// MintData returns an initialized 82-byte SPL mint account.
func MintData(decimals uint8) []byte {
	data := make([]byte, 82)
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], solana.SystemProgramID[:])
	binary.LittleEndian.PutUint64(data[36:44], 1_000_000_000)
	data[44] = decimals
	data[45] = 1
	binary.LittleEndian.PutUint32(data[46:50], 1)
	copy(data[50:82], solana.SystemProgramID[:])
	return data
}

func decodeTx(params []json.RawMessage) ([]byte, *solana.Transaction, *RPCError) {
	var encoded string
	if len(params) == 0 || json.Unmarshal(params[0], &encoded) != nil {
		return nil, nil, &RPCError{Code: -32602, Message: "Invalid params"}
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, &RPCError{Code: -32602, Message: "invalid base64"}
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil || len(tx.Signatures) == 0 {
		return nil, nil, &RPCError{Code: -32602, Message: "failed to deserialize transaction"}
	}
	return raw, tx, nil
}

func (l *Ledger) withContext(value any) map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.withContextLocked(value)
}

func (l *Ledger) withContextLocked(value any) map[string]any {
	return map[string]any{
		"context": map[string]any{"slot": l.slot},
		"value":   value,
	}
}

func (l *Ledger) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	l.calls = append(l.calls, req.Method)
	behavior := l.behavior
	h, ok := l.handlers[req.Method]
	l.mu.Unlock()

	switch behavior {
	case Hang:
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
		return
	case Unavailable:
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = MethodNotFound
	} else {
		result, rpcErr := h(req.Params)
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result = result
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
