// Package backend is the relay's client for the AI backend services.
//
// The backend exposes one HTTP endpoint per request kind:
//
//	POST /chat            {messages, model, stream:false} -> {message:{content}} | {response}
//	POST /image/generate  {prompt, negative_prompt, steps, ...} -> {images:[b64], info}
//	POST /vision/upload   multipart prompt, model, file -> {response}
//	POST /vision          {prompt, image:b64, model} -> {response}
//	GET  /chat/models, /image/models
//
// Every call is a single attempt with a per-kind timeout. Failures are
// classified once, here, into the errors package taxonomy: unreachable,
// timeout, HTTP status (with the backend's detail text) and protocol. A
// per-kind circuit breaker fails fast while a backend is down.
package backend
