// Package logs is the process-wide leveled logger.
//
// Call sites use printf-style helpers (Infof, Warnf, Errf, ...) with
// "pkg.Type.method key=value" messages. Output is rendered by zerolog.
package logs

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Level is a log severity threshold.
type Level = zerolog.Level

const (
	TraceLevel = zerolog.TraceLevel
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	Disabled   = zerolog.Disabled
)

// Config controls rendering of the process logger.
type Config struct {
	Level     Level
	Timestamp bool
	NoColor   bool
	// Bypass skips console formatting and writes raw JSON lines.
	Bypass bool
	// Out defaults to a colour-capable stdout.
	Out io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:     InfoLevel,
		Timestamp: true,
		NoColor:   !stdoutIsTerminal(),
	}
}

var (
	mu      sync.RWMutex
	current = build(DefaultConfig())
)

// Configure replaces the process logger.
func Configure(cfg Config) {
	l := build(cfg)
	mu.Lock()
	current = l
	mu.Unlock()
}

// Logger returns the underlying structured logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func build(cfg Config) zerolog.Logger {
	// Per-logger level is the only filter.
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	out := cfg.Out
	if out == nil {
		out = colorable.NewColorableStdout()
	}
	if !cfg.Bypass {
		cw := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
		if !cfg.Timestamp {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}
	ctx := zerolog.New(out).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func Tracef(format string, args ...any) {
	l := Logger()
	l.Trace().Msgf(format, args...)
}

func Debugf(format string, args ...any) {
	l := Logger()
	l.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	l := Logger()
	l.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	l := Logger()
	l.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	l := Logger()
	l.Error().Msgf(format, args...)
}

// Logf writes at no level; only Disabled suppresses it.
func Logf(format string, args ...any) {
	l := Logger()
	l.Log().Msgf(format, args...)
}
