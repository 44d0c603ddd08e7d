package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
)

// StdLogger writes single-line text records through the standard log package:
//
//	2024/03/01 10:00:00.000000 [INFO] sweep finished | failed=1 runs=10
//
// Field keys are sorted and values containing spaces, quotes or '=' are quoted.
type StdLogger struct {
	out   *log.Logger
	level LogLevel
}

// NewStdLogger creates a text logger on stderr.
func NewStdLogger(level LogLevel) *StdLogger {
	return NewStdLoggerTo(os.Stderr, level)
}

// NewStdLoggerTo creates a text logger writing to w.
func NewStdLoggerTo(w io.Writer, level LogLevel) *StdLogger {
	return &StdLogger{
		out:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		level: level,
	}
}

func (l *StdLogger) write(ctx context.Context, level LogLevel, msg string, err error, fields []map[string]interface{}) {
	if level < l.level {
		return
	}

	merged := mergeFields(ctx, fields)
	if err != nil {
		merged["error"] = err.Error()
	}

	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(level.String())
	sb.WriteString("] ")
	sb.WriteString(msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString(" |")
		for _, k := range keys {
			sb.WriteByte(' ')
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(textValue(merged[k]))
		}
	}
	l.out.Print(sb.String())
}

func textValue(v interface{}) string {
	s := fmt.Sprint(v)
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelDebug, msg, nil, fields)
}

func (l *StdLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelInfo, msg, nil, fields)
}

func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelWarn, msg, nil, fields)
}

// Error logs msg at ERROR with err rendered as the error field.
func (l *StdLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.write(ctx, LevelError, msg, err, fields)
}
