package gateway

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// Outcome is the classification of one attempt against one endpoint.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeIncompatible: the endpoint answered but cannot serve this
	// operation (method missing, history pruned, node behind a slot).
	OutcomeIncompatible
	// OutcomeRejected: the ledger refused the operation itself. Another
	// endpoint would answer the same way.
	OutcomeRejected
	// OutcomeTransport: timeout, connection or HTTP-level failure.
	OutcomeTransport
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeIncompatible:
		return "incompatible"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransport:
		return "transport"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Solana JSON-RPC error codes the classification cares about.
const (
	codeInvalidRequest          = -32600
	codeMethodNotFound          = -32601
	codeInvalidParams           = -32602
	codeInternal                = -32603
	codeBlockCleanedUp          = -32001
	codeBlockNotAvailable       = -32004
	codeNodeUnhealthy           = -32005
	codeSlotSkipped             = -32007
	codeNoSnapshot              = -32008
	codeLongTermSlotSkipped     = -32009
	codeKeyExcludedFromIndex    = -32010
	codeHistoryNotAvailable     = -32011
	codeBlockStatusNotAvailable = -32014
	codeUnsupportedTxVersion    = -32015
	codeMinContextSlotNotHit    = -32016
	codeTooManyRequests         = 429
	codeTooManyRequestsJSON     = -32429
)

var incompatibleCodes = map[int]struct{}{
	codeInvalidRequest:          {},
	codeMethodNotFound:          {},
	codeInvalidParams:           {},
	codeBlockCleanedUp:          {},
	codeBlockNotAvailable:       {},
	codeSlotSkipped:             {},
	codeNoSnapshot:              {},
	codeLongTermSlotSkipped:     {},
	codeKeyExcludedFromIndex:    {},
	codeHistoryNotAvailable:     {},
	codeBlockStatusNotAvailable: {},
	codeUnsupportedTxVersion:    {},
	codeMinContextSlotNotHit:    {},
}

var transportCodes = map[int]struct{}{
	codeInternal:            {},
	codeNodeUnhealthy:       {},
	codeTooManyRequests:     {},
	codeTooManyRequestsJSON: {},
}

// rejection lets an operation force OutcomeRejected for failures that are
// not JSON-RPC errors, e.g. an account that does not exist.
type rejection struct {
	err error
}

func (r *rejection) Error() string { return r.err.Error() }
func (r *rejection) Unwrap() error { return r.err }

func reject(err error) error {
	return &rejection{err: err}
}

func classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var statusErr *HTTPStatusError
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &statusErr) || errors.As(err, &httpErr) {
		return OutcomeTransport
	}

	var forced *rejection
	if errors.As(err, &forced) {
		return OutcomeRejected
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return OutcomeTransport
	}

	// Only HTTP 200 answers get here. Unknown codes are ledger verdicts.
	if _, ok := incompatibleCodes[rpcErr.Code]; ok {
		return OutcomeIncompatible
	}
	if _, ok := transportCodes[rpcErr.Code]; ok {
		return OutcomeTransport
	}
	return OutcomeRejected
}

func rpcErrorOf(err error) (*jsonrpc.RPCError, bool) {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

func isAlreadyProcessed(err error) bool {
	rpcErr, ok := rpcErrorOf(err)
	if !ok {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "already been processed") || strings.Contains(msg, "alreadyprocessed")
}

func isAccountNotFound(err error) bool {
	rpcErr, ok := rpcErrorOf(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(rpcErr.Message), "could not find account")
}
