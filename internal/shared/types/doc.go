// Package types provides the data structures shared by the relay's layers.
//
// Core Types:
//   - Turn: one role-tagged message in a session's context
//   - Kind: declared or inferred intent of a relay request
//   - RelayRequest: a validated inbound request, discriminated by Kind
//   - RelayResult: the normalized outcome of a successful relay
//
// Example Usage:
//
//	req := types.RelayRequest{
//	    Kind:      types.KindChat,
//	    Prompt:    "Hello",
//	    SessionID: "s1",
//	}
package types
