// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Request-scoped fields (request ID, session ID, trace ID) travel in the
// context via WithContext and are attached with FromContext.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	ctx = logging.WithContext(ctx, zap.String("session_id", sid))
//	logger.FromContext(ctx).Info("relay completed", zap.Duration("took", d))
package logging
