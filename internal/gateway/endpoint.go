package gateway

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one attempt against one endpoint when the
	// endpoint does not carry its own timeout.
	DefaultTimeout = 8 * time.Second

	// DefaultBackoff is the pause between two consecutive attempts.
	DefaultBackoff = 500 * time.Millisecond
)

// Endpoint is one ledger RPC gateway with its per-attempt timeout.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// Name returns scheme://host. Paths and query strings frequently carry
// provider API keys and must not reach logs, metrics or error payloads.
func (e Endpoint) Name() string {
	u, err := url.Parse(e.URL)
	if err != nil || u.Host == "" {
		return "invalid-endpoint"
	}
	return u.Scheme + "://" + u.Host
}

// EndpointSet is an ordered, non-empty list of endpoints. Order is
// preference: the first endpoint is always tried first. The set is
// read-only once built and safe to share between goroutines.
type EndpointSet struct {
	endpoints []Endpoint
	backoff   time.Duration
}

// NewEndpointSet validates endpoints and fills missing timeouts with
// DefaultTimeout. A zero backoff disables the inter-attempt pause.
func NewEndpointSet(endpoints []Endpoint, backoff time.Duration) (*EndpointSet, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("gateway: endpoint set must not be empty")
	}
	if backoff < 0 {
		return nil, fmt.Errorf("gateway: backoff must not be negative: %s", backoff)
	}

	res := make([]Endpoint, 0, len(endpoints))
	for i, ep := range endpoints {
		u, err := url.Parse(ep.URL)
		if err != nil {
			return nil, fmt.Errorf("gateway: endpoint[%d]: invalid url: %w", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("gateway: endpoint[%d]: unsupported scheme %q", i, u.Scheme)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("gateway: endpoint[%d]: missing host", i)
		}
		if ep.Timeout <= 0 {
			ep.Timeout = DefaultTimeout
		}
		res = append(res, ep)
	}

	return &EndpointSet{
		endpoints: res,
		backoff:   backoff,
	}, nil
}

// Endpoints returns a copy of the endpoints in preference order.
func (s *EndpointSet) Endpoints() []Endpoint {
	out := make([]Endpoint, len(s.endpoints))
	copy(out, s.endpoints)
	return out
}

func (s *EndpointSet) Backoff() time.Duration {
	return s.backoff
}

func (s *EndpointSet) Len() int {
	return len(s.endpoints)
}

// EndpointList decodes "url|timeout,url|timeout" from the environment.
// The timeout part is optional.
type EndpointList []Endpoint

func (l *EndpointList) Decode(value string) error {
	var res EndpointList
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		rawURL, rawTimeout, hasTimeout := strings.Cut(item, "|")
		ep := Endpoint{URL: strings.TrimSpace(rawURL)}
		if hasTimeout {
			d, err := time.ParseDuration(strings.TrimSpace(rawTimeout))
			if err != nil {
				return fmt.Errorf("invalid timeout for %s: %w", Endpoint{URL: ep.URL}.Name(), err)
			}
			ep.Timeout = d
		}
		res = append(res, ep)
	}

	if len(res) == 0 {
		return fmt.Errorf("no endpoints configured")
	}
	*l = res
	return nil
}
