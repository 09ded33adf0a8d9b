package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/hupe1980/themesubst/internal/config"
)

// ErrBackendStopped is returned when a backend closes its event stream
// while the watch loop is still running.
var ErrBackendStopped = errors.New("watch backend stopped unexpectedly")

// ErrInit marks failures to construct the watch backend.
var ErrInit = errors.New("creating watcher")

// HandlerFunc is called for every close-write event. A returned error ends
// the watch loop.
type HandlerFunc func(ctx context.Context, ev Event) error

// Target is a path to watch.
type Target struct {
	Path      string
	Recursive bool
}

// Options configures the watch behaviour.
type Options struct {
	// Targets are the paths to watch.
	Targets []Target

	// Backend selects the notification backend, see NewBackend.
	Backend string

	// Settle is the write quiet period of the fsnotify backend.
	Settle time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Backend: config.BackendAuto,
		Settle:  config.DefaultSettle,
		Logger:  slog.Default(),
	}
}

// Run watches opts.Targets and calls handle for every close-write event
// until ctx is cancelled, SIGINT/SIGTERM is received, or handle fails.
// Backend errors are logged and do not stop the loop.
func Run(ctx context.Context, opts Options, handle HandlerFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	backend, err := NewBackend(opts.Backend, opts.Settle)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInit, err)
	}
	defer backend.Close() //nolint:errcheck // nothing left to report to

	paths := make([]string, 0, len(opts.Targets))

	for _, t := range opts.Targets {
		if err := backend.Add(t.Path, t.Recursive); err != nil {
			return fmt.Errorf("watching %q: %w", t.Path, err)
		}

		paths = append(paths, t.Path)
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts.Logger.Info("watching for changes, happy theming!", slog.Any("paths", paths))

	return consume(sigCtx, backend, opts.Logger, handle)
}

// consume drains backend one event at a time. The handler runs to completion
// before the next event is received.
func consume(ctx context.Context, backend Backend, logger *slog.Logger, handle HandlerFunc) error {
	events, errs := backend.Events(), backend.Errors()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down watcher")
			return nil

		case ev, ok := <-events:
			if !ok {
				return ErrBackendStopped
			}

			if !ev.IsCloseWrite() {
				logger.Debug("ignoring event", slog.String("kind", ev.Kind.String()), slog.String("path", ev.Path))
				continue
			}

			logger.Debug("change detected", slog.String("path", ev.Path))

			if err := handle(ctx, ev); err != nil {
				return err
			}

		case watchErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}

			logger.Error("watch error", slog.String("error", watchErr.Error()))
		}
	}
}
