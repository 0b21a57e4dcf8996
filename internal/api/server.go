// Package api exposes swap execution and balance queries over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/balance"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/swap"
)

type Config struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	DefaultDeadline time.Duration `envconfig:"DEFAULTDEADLINE" default:"90s"`
	MaxDeadline     time.Duration `envconfig:"MAXDEADLINE" default:"5m"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWNTIMEOUT" default:"30s"`
}

type Swapper interface {
	Execute(ctx context.Context, req swap.Request, s signer.Signer) swap.Result
}

type BalanceReader interface {
	Balance(ctx context.Context, owner, asset string) (balance.Holding, error)
}

// HealthCheck reports the state of one dependency; nil means healthy.
type HealthCheck func(ctx context.Context) error

type Server struct {
	cfg      Config
	echo     *echo.Echo
	swaps    Swapper
	signer   signer.Signer
	balances BalanceReader
	checks   map[string]HealthCheck
	logger   logrus.FieldLogger
}

// NewServer builds the HTTP surface. s may be nil, in which case swaps are
// refused as invalid requests and only balances are served.
func NewServer(
	cfg Config,
	swaps Swapper,
	s signer.Signer,
	balances BalanceReader,
	checks map[string]HealthCheck,
	logger logrus.FieldLogger,
	middlewares ...echo.MiddlewareFunc,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		cfg:      cfg,
		echo:     e,
		swaps:    swaps,
		signer:   s,
		balances: balances,
		checks:   checks,
		logger:   logger.WithField("component", "api"),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(srv.requestLogger())
	e.Use(middlewares...)

	e.GET("/healthz", srv.handleHealth)
	v1 := e.Group("/v1")
	v1.POST("/swap", srv.handleSwap)
	v1.GET("/balance/:address", srv.handleBalance)

	return srv
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("starting api server on %s", addr)
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down api server")
	err := s.echo.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			entry := s.logger.WithFields(logrus.Fields{
				"method":    v.Method,
				"uri":       v.URI,
				"status":    v.Status,
				"latency":   v.Latency.String(),
				"requestId": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Debug("request served")
			return nil
		},
	})
}

// deadline returns the request budget for a caller supplied deadline in
// milliseconds; zero or less selects the default.
func (s *Server) deadline(ms int64) time.Duration {
	if ms <= 0 {
		return s.cfg.DefaultDeadline
	}
	d := time.Duration(ms) * time.Millisecond
	if s.cfg.MaxDeadline > 0 && d > s.cfg.MaxDeadline {
		return s.cfg.MaxDeadline
	}
	return d
}
