package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext adds the tracing fields found in ctx to baseLogger.
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	lc := baseLogger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.UserID != 0 {
		lc = lc.Int64("user_id", tc.UserID)
	}
	if tc.UpdateID != 0 {
		lc = lc.Int("update_id", tc.UpdateID)
	}
	return lc.Logger()
}
