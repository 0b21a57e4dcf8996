package gateway

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const statusBodyLimit = 512

// HTTPStatusError is a non-2xx answer from an endpoint. Providers put
// their own JSON-RPC error codes in such bodies (bad API key, plan
// limits), so the body is kept for diagnostics but never decoded as a
// ledger verdict.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Body)
}

// statusCheckingClient fails every response outside 2xx before the
// JSON-RPC layer sees it.
type statusCheckingClient struct {
	*http.Client
}

func (c statusCheckingClient) Do(req *http.Request) (*http.Response, error) {
	res, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return res, nil
	}

	body, _ := io.ReadAll(io.LimitReader(res.Body, statusBodyLimit))
	_ = res.Body.Close()
	return nil, &HTTPStatusError{
		StatusCode: res.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

func newRPCClient(url string) *rpc.Client {
	httpClient := statusCheckingClient{Client: &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}}
	return rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
		HTTPClient: httpClient,
	}))
}
