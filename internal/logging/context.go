package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContext enriches logger with the request id carried by ctx, if any.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	rid := RequestIDFromContext(ctx)
	if rid == "" {
		return logger
	}
	return logger.With().Str("request_id", rid).Logger()
}
