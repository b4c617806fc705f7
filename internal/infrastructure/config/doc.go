// Package config provides 12-factor configuration management for the relay.
//
// Configuration is layered, later layers winning:
//  1. Default() values
//  2. An optional YAML settings file (NOVA_CONFIG_FILE), the format the
//     admin screen exports: port, chat_model, vision_model, sd_steps, sd_size
//  3. Environment variables
//  4. CLI flags (applied by cmd/server)
//
// Configuration Sections:
//   - Server: HTTP listener (port, host)
//   - Backend: AI backend base URL, model names, per-kind timeouts, TLS
//   - Image: image generation defaults (size, steps, CFG, negative prompt)
//   - Session: expiry window, context window bound, persistence directory,
//     the opt-in session inspection route
//   - Breaker: circuit breaker thresholds for backend calls
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	w, h := cfg.ImageSize()
package config
