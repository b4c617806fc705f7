// Package middleware provides the HTTP middleware in front of the relay
// endpoints.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting, idle clients swept
//   - RequestLogger: One zap line per request, tagged with the trace ID
//   - Recovery: Panic recovery answering with the failure envelope
//
// Rate Limiting:
//   - Per-IP tracking with automatic cleanup
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - 429 responses use {success:false, error, kind:"rate_limited"}
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
