package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger for clients that accept an optional *Logger.
type Logger = zerolog.Logger

// NewLogger builds the process logger for cmd. Development writes colored console
// lines at debug level; other environments write JSON at info. level, when it
// parses, overrides either default.
func NewLogger(appEnv, level, cmd string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, level, cmd)
}

func newLogger(out io.Writer, appEnv, level, cmd string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if appEnv == "development" {
		lvl = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		lvl = parsed
	}

	ctx := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "plantscan")
	if cmd != "" {
		ctx = ctx.Str("cmd", cmd)
	}
	return ctx.Logger()
}
