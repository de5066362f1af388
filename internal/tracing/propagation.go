package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RequestID != "" {
		logger = logger.With().Str("request_id", tc.RequestID).Logger()
	}
	if tc.UserID != "" {
		logger = logger.With().Str("user_id", tc.UserID).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext merges tracing information from source context into target context
// Useful when you need to combine contexts from different sources
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RequestID != "" && GetRequestID(target) == "" {
		target = WithRequestID(target, tc.RequestID)
	}
	if tc.UserID != "" && GetUserID(target) == "" {
		target = WithUserID(target, tc.UserID)
	}

	return target
}
