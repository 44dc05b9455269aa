package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/YuminosukeSato/cdlinear/pkg/errors"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = defaultProvider()
)

// defaultProvider writes console output to stderr at CDLINEAR_LOG_LEVEL (default warn).
func defaultProvider() LoggerProvider {
	level, ok := ParseLevel(os.Getenv("CDLINEAR_LOG_LEVEL"))
	if !ok {
		level = LevelWarn
	}
	return NewZerologProvider(os.Stderr, ZerologOptions{Console: true, Level: level})
}

// SetProvider replaces the package provider and routes errors.Warn through it.
// The previous provider is returned.
func SetProvider(p LoggerProvider) LoggerProvider {
	providerMu.Lock()
	prev := provider
	provider = p
	providerMu.Unlock()

	errors.SetZerologWarnFunc(func(w error) {
		if zp, ok := p.(*ZerologProvider); ok {
			zp.warn(w)
			return
		}
		p.GetLoggerWithName("warnings").Warn(w.Error(), ErrorTypeKey, fmt.Sprintf("%T", w))
	})
	return prev
}

// ResetProvider restores the default provider and detaches warnings.
func ResetProvider() {
	providerMu.Lock()
	provider = defaultProvider()
	providerMu.Unlock()
	errors.SetZerologWarnFunc(nil)
}

// GetLogger returns the default logger of the current provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// SetLevel sets the minimum level on the current provider.
func SetLevel(level Level) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	provider.SetLevel(level)
}

// ZerologOptions configures NewZerologProvider.
type ZerologOptions struct {
	// Console selects zerolog's human readable writer instead of JSON lines.
	Console bool
	Level   Level
}

// ZerologProvider is the default provider.
type ZerologProvider struct {
	base  zerolog.Logger
	level *atomic.Int64
}

// NewZerologProvider writes to w.
func NewZerologProvider(w io.Writer, opts ZerologOptions) *ZerologProvider {
	if opts.Console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	level := &atomic.Int64{}
	level.Store(int64(opts.Level))
	return &ZerologProvider{
		base:  zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger(),
		level: level,
	}
}

func (p *ZerologProvider) GetLogger() Logger {
	return &zerologLogger{zl: p.base, level: p.level}
}

func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	return &zerologLogger{zl: p.base.With().Str(ComponentKey, name).Logger(), level: p.level}
}

func (p *ZerologProvider) SetLevel(level Level) {
	p.level.Store(int64(level))
}

// warn emits warnings that know how to marshal themselves as a nested object.
func (p *ZerologProvider) warn(w error) {
	if Level(p.level.Load()) > LevelWarn {
		return
	}
	ev := p.base.Warn().Str(ComponentKey, "warnings")
	if m, ok := w.(zerolog.LogObjectMarshaler); ok {
		ev = ev.Object("warning", m)
	} else {
		ev = ev.Str(ErrorTypeKey, fmt.Sprintf("%T", w))
	}
	ev.Msg(w.Error())
}

type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int64
}

func (l *zerologLogger) Debug(msg string, fields ...any) { l.log(LevelDebug, msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { l.log(LevelInfo, msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { l.log(LevelWarn, msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { l.log(LevelError, msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(fields).Logger(), level: l.level}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= Level(l.level.Load())
}

func (l *zerologLogger) log(level Level, msg string, fields []any) {
	if !l.Enabled(context.Background(), level) {
		return
	}
	var ev *zerolog.Event
	switch level {
	case LevelDebug:
		ev = l.zl.Debug()
	case LevelInfo:
		ev = l.zl.Info()
	case LevelWarn:
		ev = l.zl.Warn()
	default:
		ev = l.zl.Error()
	}
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

// SlogProvider adapts a slog.Handler, typically the ErrFmtHandler installed by SetupLogger.
type SlogProvider struct {
	handler slog.Handler
	level   *slog.LevelVar
}

// NewSlogProvider wraps handler. level may be nil when the handler has a fixed level.
func NewSlogProvider(handler slog.Handler, level *slog.LevelVar) *SlogProvider {
	if level == nil {
		level = &slog.LevelVar{}
	}
	return &SlogProvider{handler: handler, level: level}
}

func (p *SlogProvider) GetLogger() Logger {
	return &slogLogger{l: slog.New(p.handler)}
}

func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &slogLogger{l: slog.New(p.handler).With(ComponentKey, name)}
}

func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}
