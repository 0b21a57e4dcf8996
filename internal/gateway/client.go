package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Config is the startup configuration of the ledger gateway.
type Config struct {
	Endpoints           EndpointList  `envconfig:"ENDPOINTS" required:"true"`
	Backoff             time.Duration `envconfig:"BACKOFF" default:"500ms"`
	Commitment          string        `envconfig:"COMMITMENT" default:"confirmed"`
	SkipPreflight       bool          `envconfig:"SKIPPREFLIGHT" default:"false"`
	PreflightCommitment string        `envconfig:"PREFLIGHTCOMMITMENT" default:"confirmed"`
}

func (c Config) EndpointSet() (*EndpointSet, error) {
	return NewEndpointSet(c.Endpoints, c.Backoff)
}

func (c Config) Options() (Options, error) {
	commitment, err := ParseCommitment(c.Commitment)
	if err != nil {
		return Options{}, fmt.Errorf("commitment: %w", err)
	}
	preflight, err := ParseCommitment(c.PreflightCommitment)
	if err != nil {
		return Options{}, fmt.Errorf("preflight commitment: %w", err)
	}
	return Options{
		Commitment:          commitment,
		SkipPreflight:       c.SkipPreflight,
		PreflightCommitment: preflight,
	}, nil
}

// Options tune individual ledger operations.
type Options struct {
	Commitment          rpc.CommitmentType
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
}

func DefaultOptions() Options {
	return Options{
		Commitment:          rpc.CommitmentConfirmed,
		PreflightCommitment: rpc.CommitmentConfirmed,
	}
}

func ParseCommitment(s string) (rpc.CommitmentType, error) {
	switch rpc.CommitmentType(s) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
		return rpc.CommitmentType(s), nil
	case "":
		return rpc.CommitmentConfirmed, nil
	default:
		return "", fmt.Errorf("unknown commitment %q", s)
	}
}

// Metrics receives one observation per attempt.
type Metrics interface {
	RecordAttempt(operation, endpoint, outcome string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordAttempt(string, string, string, time.Duration) {}

// Client performs ledger operations against an EndpointSet, trying
// endpoints one at a time in configured order.
type Client struct {
	set     *EndpointSet
	rpcs    []*rpc.Client
	opts    Options
	logger  logrus.FieldLogger
	metrics Metrics
}

func NewClient(set *EndpointSet, opts Options, logger logrus.FieldLogger, metrics Metrics) *Client {
	if metrics == nil {
		metrics = nopMetrics{}
	}

	rpcs := make([]*rpc.Client, 0, set.Len())
	for _, ep := range set.endpoints {
		rpcs = append(rpcs, newRPCClient(ep.URL))
	}

	return &Client{
		set:     set,
		rpcs:    rpcs,
		opts:    opts,
		logger:  logger.WithField("component", "gateway"),
		metrics: metrics,
	}
}

type operation[T any] func(ctx context.Context, rc *rpc.Client) (T, error)

// call runs fn against each endpoint in order until one succeeds, one
// rejects the operation, or the set is exhausted.
func call[T any](ctx context.Context, c *Client, op string, fn operation[T]) (T, error) {
	var zero T
	attempts := make([]Attempt, 0, c.set.Len())

	// Nothing is sent once the caller's context is done.
	if err := ctx.Err(); err != nil {
		return zero, &InterruptedError{Operation: op, Attempts: attempts, Err: err}
	}

	for i, ep := range c.set.endpoints {
		if i > 0 {
			err := sleep(ctx, c.set.backoff)
			if err != nil {
				return zero, &InterruptedError{Operation: op, Attempts: attempts, Err: err}
			}
		}

		res, err := runAttempt(ctx, c, i, op, fn)
		outcome := classify(err)

		switch outcome {
		case OutcomeSuccess:
			return res, nil
		case OutcomeRejected:
			c.logger.WithFields(logrus.Fields{
				"operation": op,
				"endpoint":  ep.Name(),
			}).Infof("operation rejected by ledger: %v", err)
			return zero, newRejectedError(op, ep, err)
		case OutcomeIncompatible, OutcomeTransport:
			attempts = append(attempts, Attempt{
				Endpoint: ep.Name(),
				Outcome:  outcome,
				Err:      err,
			})
			c.logger.WithFields(logrus.Fields{
				"operation": op,
				"endpoint":  ep.Name(),
				"outcome":   outcome.String(),
				"attempt":   i + 1,
			}).Warnf("endpoint failed, advancing: %v", err)

			if ctx.Err() != nil {
				return zero, &InterruptedError{Operation: op, Attempts: attempts, Err: ctx.Err()}
			}
		}
	}

	return zero, &AllEndpointsFailedError{Operation: op, Attempts: attempts}
}

func runAttempt[T any](ctx context.Context, c *Client, i int, op string, fn operation[T]) (T, error) {
	ep := c.set.endpoints[i]

	attemptCtx, cancel := context.WithTimeout(ctx, ep.Timeout)
	defer cancel()

	start := time.Now()
	res, err := fn(attemptCtx, c.rpcs[i])
	c.metrics.RecordAttempt(op, ep.Name(), classify(err).String(), time.Since(start))

	return res, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
