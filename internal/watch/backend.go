package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/themesubst/internal/config"
)

var (
	// ErrUnsupported is returned when a backend does not exist on this platform.
	ErrUnsupported = errors.New("watch backend not supported on this platform")

	// ErrOverflow is reported on Errors when the kernel dropped events.
	ErrOverflow = errors.New("event queue overflowed, some changes were lost")
)

// Backend owns the OS watch handles and delivers translated events.
//
// Events and Errors are closed after Close returns. Both have a capacity of
// one; a backend blocks while the consumer has not taken the previous value.
type Backend interface {
	// Add watches path. With recursive set and path a directory, every
	// non-hidden subdirectory is watched as well.
	Add(path string, recursive bool) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// NewBackend creates the backend named by one of the config.Backend
// constants; empty means auto. settle is only used by the fsnotify
// backend. The auto backend prefers inotify and falls back to fsnotify where
// inotify does not exist.
func NewBackend(name string, settle time.Duration) (Backend, error) {
	switch name {
	case "", config.BackendAuto:
		b, err := newInotifyBackend()
		if errors.Is(err, ErrUnsupported) {
			return newFsnotifyBackend(settle)
		}

		return b, err
	case config.BackendInotify:
		return newInotifyBackend()
	case config.BackendFsnotify:
		return newFsnotifyBackend(settle)
	default:
		return nil, fmt.Errorf("unknown watch backend %q", name)
	}
}

// addTarget calls add for path, or for path and its subdirectories when
// recursive is set and path is a directory.
func addTarget(path string, recursive bool, add func(string) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if !recursive || !info.IsDir() {
		return add(path)
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") && p != path {
			return filepath.SkipDir
		}

		return add(p)
	})
}
