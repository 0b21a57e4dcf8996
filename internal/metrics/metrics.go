// Package metrics provides Prometheus metrics collection for the swap gateway.
//
// This package includes:
// - HTTP request metrics (count, latency, errors)
// - Ledger gateway attempt metrics per operation, endpoint and outcome
// - Swap outcome and stage latency metrics
// - Metrics HTTP server on configurable port
//
// Usage:
//
//	metricsServer := metrics.StartMetricsServer(cfg, []string{metrics.ServiceHTTP, metrics.ServiceSwap}, logger)
//	defer metricsServer.Stop(context.Background())
//
//	e.Use(metrics.HTTPMiddleware())
package metrics

const namespace = "swapgw"
