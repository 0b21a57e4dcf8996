package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/api"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/asset"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/balance"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/gateway"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/graceful"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/jupiter"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/kms"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/logging"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/metrics"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/signer"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/solana"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/status"
	"github.com/liza-elizaos/Liza-DeX-Agent-sub001/internal/swap"
)

func main() {
	cfg, err := newConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogFormat)
	err = logging.SetLevel(logger, cfg.LogLevel)
	if err != nil {
		logger.Fatalf("failed to set log level: %v", err)
	}

	ctx, cancel := graceful.Context(context.Background(), logger)
	defer cancel()

	metricsServer := metrics.StartMetricsServer(
		cfg.Metrics,
		[]string{metrics.ServiceHTTP, metrics.ServiceGateway, metrics.ServiceSwap},
		logger,
	)

	endpoints, err := cfg.Gateway.EndpointSet()
	if err != nil {
		logger.Fatalf("invalid gateway endpoints: %v", err)
	}
	opts, err := cfg.Gateway.Options()
	if err != nil {
		logger.Fatalf("invalid gateway options: %v", err)
	}
	gw := gateway.NewClient(endpoints, opts, logger, metrics.NewGatewayMetrics())
	for _, ep := range endpoints.Endpoints() {
		logger.WithFields(logrus.Fields{
			"endpoint": ep.Name(),
			"timeout":  ep.Timeout.String(),
		}).Info("gateway endpoint configured")
	}

	checks := map[string]api.HealthCheck{
		"ledger": func(ctx context.Context) error {
			_, err := gw.GetLatestBlockhash(ctx)
			return err
		},
	}

	var cache asset.Cache = asset.NewMemoryCache()
	if cfg.Redis.URL != "" {
		redisClient, err := asset.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("failed to initialize Redis client: %v", err)
		}
		defer func() {
			_ = redisClient.Close()
		}()
		cache = asset.NewRedisCache(redisClient, cfg.Redis.AssetTTL)
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	resolver := asset.NewResolver(gw, cache, logger)

	priorityFee, err := jupiter.PriorityFee(cfg.Jupiter.PriorityFee)
	if err != nil {
		logger.Fatalf("invalid jupiter priority fee: %v", err)
	}
	jup := jupiter.NewClient(cfg.Jupiter.URL, cfg.Jupiter.Timeout)

	commitment, err := gateway.ParseCommitment(cfg.Swap.Commitment)
	if err != nil {
		logger.Fatalf("invalid swap commitment: %v", err)
	}

	orchestrator := swap.NewOrchestrator(
		resolver,
		jupiter.NewQuoteService(jup, cfg.Jupiter.SlippageBps, cfg.Jupiter.QuoteTTL),
		solana.NewBuilder(jup, gw, priorityFee, logger),
		gw,
		status.NewPoller(gw, cfg.Swap.PollInterval, commitment, logger),
		cfg.Swap.ConfirmTimeout,
		metrics.NewSwapMetrics(),
		logger,
	)

	var txSigner signer.Signer
	if cfg.Signer.Configured() {
		keypair, err := loadSigner(ctx, cfg.Signer)
		if err != nil {
			logger.Fatalf("failed to load signer: %v", err)
		}
		defer keypair.Destroy()
		txSigner = keypair
		logger.WithField("signer", keypair.PublicKey().String()).Info("signer loaded")
	} else {
		logger.Warn("no signer configured, swap requests will be refused")
	}

	srv := api.NewServer(
		cfg.HTTP,
		orchestrator,
		txSigner,
		balance.NewService(gw, resolver, logger),
		checks,
		logger,
		metrics.HTTPMiddleware(),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		return metricsServer.Stop(stopCtx)
	})

	err = g.Wait()
	if err != nil {
		logger.Errorf("server stopped with error: %v", err)
		return
	}
	logger.Info("server stopped")
}

func loadSigner(ctx context.Context, cfg signer.Config) (*signer.KeypairSigner, error) {
	if cfg.KMSCiphertextPath == "" {
		return signer.Load(ctx, cfg, nil)
	}

	client, err := kms.New(ctx, cfg.KMSRegion, cfg.KMSEndpoint)
	if err != nil {
		return nil, err
	}
	return signer.Load(ctx, cfg, client)
}
