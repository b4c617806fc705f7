/*
Package monitoring provides Prometheus metrics for the relay.

# Overview

Each Metrics value owns a private registry, tracking HTTP requests, relay
outcomes per request kind, AI backend calls, breaker state and the session
store.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "chat")
	// ... call the backend ...
	timer.Stop("200")

Snapshot returns a JSON-friendly view of the main counters for /health.
*/
package monitoring
