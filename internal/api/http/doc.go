// Package http provides the relay's inbound HTTP surface.
//
// Every endpoint answers with the same envelope:
//
//	{"success": true,  "data": {...}}
//	{"success": false, "error": "...", "kind": "backend_http", "status": 500}
//
// Endpoints:
//   - Relay: POST /relay (JSON or multipart; "type" selects chat,
//     image_generate or vision, empty means infer from the prompt)
//   - Models: GET /models/chat, GET /models/image
//   - Sessions: GET /sessions/:id (read-only context window)
//   - Health: /, /health, POST /heartbeat
//
// Images arrive as base64 (optionally a data URL) in the "image" field or
// as a multipart upload named "image" or "file". Generated images are
// returned as data:image/png;base64 URLs.
//
// Example Usage:
//
//	handlers := http.NewHandlers(http.Deps{Dispatcher: dispatcher, Models: client, Sessions: store})
//	handlers.Register(router)
package http
