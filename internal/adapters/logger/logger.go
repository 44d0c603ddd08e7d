package logger

import (
	"context"
	"strings"

	"github.com/AllanBico/atlas/internal/ports"
)

// Formats accepted by New.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
)

type requestIDKey struct{}

// WithRequestID returns a context whose log lines carry id as request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request id stored in ctx, if any.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// New picks a logger implementation for the configured format: "text" uses
// the standard library logger, "json" and "console" use zerolog.
func New(level, format string) ports.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, FormatText) {
		return NewStdLogger(lvl)
	}
	if isConsoleFormat(format) {
		return NewZeroLogger(lvl, FormatConsole)
	}
	return NewZeroLogger(lvl, FormatJSON)
}

// mergeFields flattens the variadic field maps. Later maps win on key clashes.
func mergeFields(ctx context.Context, fields []map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if id, ok := RequestID(ctx); ok {
		merged["request_id"] = id
	}
	return merged
}
