package meshdust

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes human readable lines through zerolog. Debug output
// can be toggled at runtime.
type DefaultLogger struct {
	mu    sync.Mutex
	debug bool
	zl    zerolog.Logger
}

func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	return NewLogger(os.Stderr, prefix, debug)
}

// NewLogger builds a DefaultLogger writing console-formatted output to w.
func NewLogger(w io.Writer, prefix string, debug bool) *DefaultLogger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: "15:04:05.000000",
	}
	ctx := zerolog.New(cw).With().Timestamp()
	if prefix != "" {
		ctx = ctx.Str("component", prefix)
	}
	return &DefaultLogger{
		debug: debug,
		zl:    ctx.Logger().Level(zerolog.DebugLevel),
	}
}

// ParseLevel maps a config string onto the debug toggle plus a zerolog
// level; unknown strings mean info.
func ParseLevel(level string) (zerolog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return zerolog.DebugLevel, true
	case "WARN":
		return zerolog.WarnLevel, false
	case "ERROR":
		return zerolog.ErrorLevel, false
	}
	return zerolog.InfoLevel, false
}

// SetLevel applies a config level string.
func (l *DefaultLogger) SetLevel(level string) {
	lvl, debug := ParseLevel(level)
	l.mu.Lock()
	l.debug = debug
	l.zl = l.zl.Level(lvl)
	l.mu.Unlock()
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	if enabled {
		l.zl = l.zl.Level(zerolog.DebugLevel)
	}
	l.mu.Unlock()
}

func (l *DefaultLogger) logger() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	zl := l.logger()
	zl.Debug().Msgf(format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	zl := l.logger()
	zl.Info().Msgf(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	zl := l.logger()
	zl.Warn().Msgf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	zl := l.logger()
	zl.Error().Msgf(format, args...)
}

// Nop logger

type nopLogger struct{}

func NewNopLogger() Logger                              { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}
