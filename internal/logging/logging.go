// Package logging initialises a [log/slog] logger from the application
// configuration and carries it through contexts.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/themesubst/internal/config"
)

type ctxKey struct{}

// timeLayout keeps text log lines short; watch sessions run for hours and the
// date adds nothing.
const timeLayout = "15:04:05"

// Setup creates a logger configured according to cfg that writes to stderr
// and installs it as the process-wide default.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter is Setup with an explicit destination, for tests.
func SetupWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	logger := slog.New(NewHandler(cfg, w))
	slog.SetDefault(logger)

	return logger
}

// NewHandler builds the slog handler selected by cfg.LogFormat.
func NewHandler(cfg *config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.EffectiveLogLevel())}

	if cfg.LogFormat == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}

	opts.ReplaceAttr = shortTime

	return slog.NewTextHandler(w, opts)
}

func shortTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, a.Value.Time().Format(timeLayout))
	}

	return a
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger tagged with the given component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}

	return logger.With(slog.String("component", name))
}

// Duration is a slog attribute rendering d rounded to milliseconds.
func Duration(key string, d time.Duration) slog.Attr {
	return slog.String(key, d.Round(time.Millisecond).String())
}

// NewContext returns a child context carrying logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}

	return slog.Default()
}
