package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/AllanBico/atlas/internal/ports"
)

// TeeLogger forwards Info, Warn and Error lines to an event publisher as Log
// messages while still writing them to the wrapped logger. Debug lines stay
// local. Never hand a TeeLogger to the Hub it publishes to: the hub logs while
// holding its lock.
type TeeLogger struct {
	ports.Logger
	events ports.EventPublisher
}

// NewTeeLogger wraps base so that its output also reaches events.
func NewTeeLogger(base ports.Logger, events ports.EventPublisher) *TeeLogger {
	if base == nil {
		base = ports.NopLogger{}
	}
	return &TeeLogger{Logger: base, events: events}
}

func (l *TeeLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.Logger.Info(ctx, msg, fields...)
	l.events.PublishLog("INFO", formatLine(msg, nil, fields))
}

func (l *TeeLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.Logger.Warn(ctx, msg, fields...)
	l.events.PublishLog("WARN", formatLine(msg, nil, fields))
}

func (l *TeeLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.Logger.Error(ctx, err, msg, fields...)
	l.events.PublishLog("ERROR", formatLine(msg, err, fields))
}

// formatLine renders "msg: err k=v" with keys sorted.
func formatLine(msg string, err error, fields []map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(msg)
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}

	merged := make(map[string]interface{})
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, merged[k])
	}
	return b.String()
}
