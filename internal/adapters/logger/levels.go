package logger

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel is the minimum severity a logger writes.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// LookupLevel resolves a case-insensitive level name. "warning" is accepted for WARN.
func LookupLevel(name string) (LogLevel, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for lvl, n := range levelNames {
		if n == name {
			return LogLevel(lvl), true
		}
	}
	return LevelInfo, false
}

// ParseLevel is LookupLevel falling back to INFO for unknown names.
func ParseLevel(name string) LogLevel {
	lvl, _ := LookupLevel(name)
	return lvl
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
