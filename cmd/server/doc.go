// Package main is the entry point for the nova-relay server.
//
// The relay sits between the chat UI and the AI backends:
//
//	UI → nova-relay → /chat          (language model)
//	                → /image/generate (image model)
//	                → /vision[/upload] (vision model)
//
// Configuration:
//   - Defaults for a local backend
//   - Settings file (--config or NOVA_CONFIG_FILE)
//   - Environment variables (12-factor)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Serve (default command)
//	./nova-relay --port 8080 --backend http://10.0.0.5:8000
//
//	# Development mode (colored logs, debug level)
//	./nova-relay serve --dev
//
//	# Validate configuration and check the backend is reachable
//	./nova-relay check
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
