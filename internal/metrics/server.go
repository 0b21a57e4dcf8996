package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Enabled bool   `envconfig:"ENABLED" default:"true"`
	Host    string `envconfig:"HOST" default:"0.0.0.0"`
	Port    string `envconfig:"PORT" default:"88"`
}

// Server serves /metrics on its own port.
type Server struct {
	e      *echo.Echo
	logger *logrus.Logger
}

// StartMetricsServer registers the metrics of services and starts serving
// them in the background. It returns nil when metrics are disabled; Stop
// is safe on a nil Server.
func StartMetricsServer(cfg Config, services []string, logger *logrus.Logger) *Server {
	if !cfg.Enabled {
		logger.Info("Metrics server disabled")
		return nil
	}

	RegisterMetrics(services, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	go func() {
		logger.Infof("Starting metrics server on %s", addr)
		err := e.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()

	return &Server{e: e, logger: logger}
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.e.Shutdown(ctx)
}
