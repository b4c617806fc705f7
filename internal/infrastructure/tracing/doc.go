/*
Package tracing provides lightweight request tracing for the relay.

# Overview

Every inbound request gets a span. The trace context rides on the request
context into the backend client, which forwards it to the AI backend so a
single ID links a client request to the backend call it caused.

# Usage

	tracer := tracing.New("nova-relay", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// Outbound call
	headers := http.Header{}
	tracing.InjectTraceContext(ctx, headers)

	// Manual span
	span, ctx := tracer.StartSpan(ctx, "backend.chat")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

Traces use standard HTTP headers for propagation:
- X-Trace-ID: Unique identifier for entire request flow
- X-Span-ID: Identifier for current operation
*/
package tracing
