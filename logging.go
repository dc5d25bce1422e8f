package raymaster

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
)

// Logger is the logging interface every component accepts.
type Logger = core.Logger

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger { return core.NewNopLogger() }

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultLogger adapts a slog.Logger to Logger. Records below Warn go to the
// output writer, Warn and above to the error writer. The level is shared by
// every logger derived with Named, so SetDebug applies to all of them.
type DefaultLogger struct {
	level *slog.LevelVar
	base  *slog.Logger
	log   *slog.Logger
}

// NewLoggerTo builds a DefaultLogger over explicit writers. format is
// LogFormatText or LogFormatJSON.
func NewLoggerTo(out, errOut io.Writer, format, component string, debug bool) *DefaultLogger {
	level := new(slog.LevelVar)
	if debug {
		level.Set(slog.LevelDebug)
	}
	opts := &slog.HandlerOptions{Level: level}
	handler := func(w io.Writer) slog.Handler {
		if format == LogFormatJSON {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}
	base := slog.New(splitHandler{low: handler(out), high: handler(errOut)})
	return (&DefaultLogger{level: level, base: base}).named(component)
}

// Named returns a logger tagged with another component name that shares
// this logger's writers and level.
func (l *DefaultLogger) Named(component string) *DefaultLogger {
	return l.named(component)
}

func (l *DefaultLogger) named(component string) *DefaultLogger {
	log := l.base
	if component != "" {
		log = log.With("component", component)
	}
	return &DefaultLogger{level: l.level, base: l.base, log: log}
}

func (l *DefaultLogger) DebugEnabled() bool {
	return l.level.Level() <= slog.LevelDebug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	if enabled {
		l.level.Set(slog.LevelDebug)
	} else {
		l.level.Set(slog.LevelInfo)
	}
}

func (l *DefaultLogger) logf(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	l.log.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) { l.logf(slog.LevelDebug, format, args...) }
func (l *DefaultLogger) Infof(format string, args ...any)  { l.logf(slog.LevelInfo, format, args...) }
func (l *DefaultLogger) Warnf(format string, args ...any)  { l.logf(slog.LevelWarn, format, args...) }
func (l *DefaultLogger) Errorf(format string, args ...any) { l.logf(slog.LevelError, format, args...) }

// splitHandler routes records by level to one of two handlers.
type splitHandler struct {
	low, high slog.Handler
}

func (h splitHandler) pick(level slog.Level) slog.Handler {
	if level >= slog.LevelWarn {
		return h.high
	}
	return h.low
}

func (h splitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.pick(level).Enabled(ctx, level)
}

func (h splitHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.pick(r.Level).Handle(ctx, r)
}

func (h splitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return splitHandler{low: h.low.WithAttrs(attrs), high: h.high.WithAttrs(attrs)}
}

func (h splitHandler) WithGroup(name string) slog.Handler {
	return splitHandler{low: h.low.WithGroup(name), high: h.high.WithGroup(name)}
}
