package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/api"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/logging"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/metrics"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/swap"
)

type config struct {
	LogFormat logging.LogFormat `envconfig:"LOG_FORMAT" default:"text"`
	LogLevel  string            `envconfig:"LOG_LEVEL" default:"info"`
	HTTP      api.Config
	Metrics   metrics.Config
	Gateway   gateway.Config
	Jupiter   jupiter.Config
	Swap      swap.Config
	Signer    signer.Config
	Redis     redisConfig
}

// redisConfig enables the shared resolved-asset cache. Without a URL the
// cache is kept in process memory.
type redisConfig struct {
	URL      string        `envconfig:"URL"`
	AssetTTL time.Duration `envconfig:"ASSETTTL" default:"24h"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}
