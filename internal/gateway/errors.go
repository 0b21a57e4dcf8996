package gateway

import (
	"fmt"
	"strings"
)

// Attempt records one failed attempt of a call.
type Attempt struct {
	Endpoint string
	Outcome  Outcome
	Err      error
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s (%s): %v", a.Endpoint, a.Outcome, a.Err)
}

// AllEndpointsFailedError is returned when every endpoint of the set failed
// with a transport or incompatibility error. Attempts are in the order the
// endpoints were tried, one per endpoint.
type AllEndpointsFailedError struct {
	Operation string
	Attempts  []Attempt
}

func (e *AllEndpointsFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("gateway: %s failed on all %d endpoints: [%s]", e.Operation, len(e.Attempts), strings.Join(parts, "; "))
}

// RejectedError is an authoritative refusal by the ledger. The remaining
// endpoints were not tried.
type RejectedError struct {
	Operation string
	Endpoint  string
	Code      int
	Message   string
	Err       error
}

func (e *RejectedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("gateway: %s rejected by %s: code %d: %s", e.Operation, e.Endpoint, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: %s rejected by %s: %s", e.Operation, e.Endpoint, e.Message)
}

func (e *RejectedError) Unwrap() error { return e.Err }

func newRejectedError(op string, ep Endpoint, err error) *RejectedError {
	res := &RejectedError{
		Operation: op,
		Endpoint:  ep.Name(),
		Message:   err.Error(),
		Err:       err,
	}
	if rpcErr, ok := rpcErrorOf(err); ok {
		res.Code = rpcErr.Code
		res.Message = rpcErr.Message
	}
	return res
}

// InterruptedError is returned when the caller's context ends before the
// call reached a result. Unwrap yields the context error. No Attempts means
// no endpoint was contacted.
type InterruptedError struct {
	Operation string
	Attempts  []Attempt
	Err       error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("gateway: %s interrupted after %d attempts: %v", e.Operation, len(e.Attempts), e.Err)
}

func (e *InterruptedError) Unwrap() error { return e.Err }
