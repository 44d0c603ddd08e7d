package logger

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements the ports.Logger interface on top of zerolog.
type ZeroLogger struct {
	zlog zerolog.Logger
}

// NewZeroLogger creates a zerolog-backed logger writing to stdout.
// format "console" (or "pretty") selects human-readable output; anything else is JSON.
func NewZeroLogger(level LogLevel, format string) *ZeroLogger {
	var output io.Writer = os.Stdout
	if isConsoleFormat(format) {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return NewZeroLoggerTo(output, level)
}

// NewZeroLoggerTo creates a JSON zerolog logger writing to w.
func NewZeroLoggerTo(w io.Writer, level LogLevel) *ZeroLogger {
	zlog := zerolog.New(w).
		Level(level.zerolog()).
		With().
		Timestamp().
		Str("service", "atlas").
		Logger()
	return &ZeroLogger{zlog: zlog}
}

func (l *ZeroLogger) write(ctx context.Context, event *zerolog.Event, msg string, fields []map[string]interface{}) {
	merged := mergeFields(ctx, fields)
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		event = event.Interface(k, merged[k])
	}
	event.Msg(msg)
}

// Debug logs a message at Debug level.
func (l *ZeroLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, l.zlog.Debug(), msg, fields)
}

// Info logs a message at Info level.
func (l *ZeroLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, l.zlog.Info(), msg, fields)
}

// Warn logs a message at Warning level.
func (l *ZeroLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, l.zlog.Warn(), msg, fields)
}

// Error logs an error message at Error level.
func (l *ZeroLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.write(ctx, l.zlog.Error().Err(err), msg, fields)
}

// Zerolog returns the underlying zerolog.Logger
func (l *ZeroLogger) Zerolog() zerolog.Logger {
	return l.zlog
}

// isConsoleFormat reports whether format asks for human-readable output.
func isConsoleFormat(format string) bool {
	f := strings.ToLower(format)
	return f == "console" || f == "pretty"
}
