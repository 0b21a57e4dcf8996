// Package jupitertest provides an in-process aggregator serving /quote and
// /swap for tests.
package jupitertest

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// StaleBlockhash is the recent blockhash baked into every transaction the
// aggregator assembles.
var StaleBlockhash = solana.Hash{0xAA, 0xAA}

type failure struct {
	status int
	body   string
}

type Aggregator struct {
	srv *httptest.Server

	mu           sync.Mutex
	outAmount    uint64
	feePayer     *solana.PublicKey
	quoteFailure *failure
	swapFailure  *failure
	quoteCalls   int
	swapCalls    int
	lastSwap     map[string]json.RawMessage
}

func NewAggregator() *Aggregator {
	a := &Aggregator{outAmount: 149500}
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", a.quote)
	mux.HandleFunc("/swap", a.swap)
	a.srv = httptest.NewServer(mux)
	return a
}

func (a *Aggregator) URL() string { return a.srv.URL }

func (a *Aggregator) Close() { a.srv.Close() }

func (a *Aggregator) SetOutAmount(v uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outAmount = v
}

// SetFeePayer makes assembled transactions pay fees from pk instead of the
// requesting user.
func (a *Aggregator) SetFeePayer(pk solana.PublicKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feePayer = &pk
}

func (a *Aggregator) FailQuotes(status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.quoteFailure = &failure{status: status, body: body}
}

func (a *Aggregator) FailSwaps(status int, body string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.swapFailure = &failure{status: status, body: body}
}

func (a *Aggregator) QuoteCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quoteCalls
}

func (a *Aggregator) SwapCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.swapCalls
}

// LastSwapQuote returns the quoteResponse field of the last swap request.
func (a *Aggregator) LastSwapQuote() json.RawMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSwap["quoteResponse"]
}

func (a *Aggregator) quote(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.quoteCalls++
	fail := a.quoteFailure
	out := a.outAmount
	a.mu.Unlock()

	if fail != nil {
		w.WriteHeader(fail.status)
		_, _ = w.Write([]byte(fail.body))
		return
	}

	q := r.URL.Query()
	slippage, _ := strconv.ParseUint(q.Get("slippageBps"), 10, 64)
	writeJSON(w, map[string]any{
		"inputMint":            q.Get("inputMint"),
		"inAmount":             q.Get("amount"),
		"outputMint":           q.Get("outputMint"),
		"outAmount":            strconv.FormatUint(out, 10),
		"otherAmountThreshold": strconv.FormatUint(out*(10000-slippage)/10000, 10),
		"swapMode":             "ExactIn",
		"slippageBps":          slippage,
		"priceImpactPct":       "0",
		"routePlan": []map[string]any{{
			"percent": 100,
			"swapInfo": map[string]any{
				"ammKey":     "HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ",
				"label":      "Whirlpool",
				"inputMint":  q.Get("inputMint"),
				"outputMint": q.Get("outputMint"),
				"inAmount":   q.Get("amount"),
				"outAmount":  strconv.FormatUint(out, 10),
			},
		}},
		"contextSlot": 1000,
	})
}

func (a *Aggregator) swap(w http.ResponseWriter, r *http.Request) {
	var req map[string]json.RawMessage
	err := json.NewDecoder(r.Body).Decode(&req)

	a.mu.Lock()
	a.swapCalls++
	a.lastSwap = req
	fail := a.swapFailure
	feePayer := a.feePayer
	a.mu.Unlock()

	if fail != nil {
		w.WriteHeader(fail.status)
		_, _ = w.Write([]byte(fail.body))
		return
	}
	if err != nil {
		http.Error(w, `{"error":"invalid body"}`, http.StatusBadRequest)
		return
	}

	var user string
	_ = json.Unmarshal(req["userPublicKey"], &user)
	owner, err := solana.PublicKeyFromBase58(user)
	if err != nil {
		http.Error(w, `{"error":"invalid userPublicKey"}`, http.StatusBadRequest)
		return
	}

	payer := owner
	if feePayer != nil {
		payer = *feePayer
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1, payer, solana.SystemProgramID).Build(),
		},
		StaleBlockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	raw, err := tx.MarshalBinary()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"swapTransaction":           base64.StdEncoding.EncodeToString(raw),
		"lastValidBlockHeight":      2000,
		"prioritizationFeeLamports": 5000,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
