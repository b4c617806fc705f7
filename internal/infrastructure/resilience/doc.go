/*
Package resilience provides the circuit breaker guarding AI backend calls.

# Overview

One breaker per backend endpoint (chat, image, vision) stops the relay from
queueing requests behind a backend that is down. Only failures the caller
classifies as backend faults count against the breaker; a 4xx caused by the
client's own request leaves it closed.

# Usage

	breaker := resilience.New("chat", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.TripAfter(5),
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker", zap.String("name", name), zap.Stringer("to", to))
		},
	})

	reply, err := resilience.Call(breaker, func() (string, error) {
		return client.Chat(ctx, req)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
