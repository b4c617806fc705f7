// Package relay implements the Dispatcher, the single entry point through
// which every chat, image generation and vision request passes.
//
// Flow:
//  1. Resolve the kind: an explicit type wins; otherwise intent inference
//  2. Validate input; invalid requests never reach a backend
//  3. Chat: run the exchange under the session lock, appending the user
//     turn and the reply only after the backend succeeds
//  4. Image generation and vision: stateless, forwarded directly
//
// Example Usage:
//
//	d := relay.NewDispatcher(client, windows, intent.New(), relay.DefaultsFromConfig(cfg), logger, metrics)
//	result, err := d.Dispatch(ctx, types.RelayRequest{Kind: types.KindChat, Prompt: "Hello", SessionID: "s1"})
package relay
