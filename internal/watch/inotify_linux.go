//go:build linux

package watch

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

const inotifyMask = unix.IN_CREATE | unix.IN_OPEN | unix.IN_MODIFY | unix.IN_ATTRIB |
	unix.IN_CLOSE_WRITE | unix.IN_CLOSE_NOWRITE |
	unix.IN_MOVED_FROM | unix.IN_MOVED_TO | unix.IN_MOVE_SELF |
	unix.IN_DELETE | unix.IN_DELETE_SELF

// maskKinds is ordered the way the kernel would report the bits as separate
// records, so a combined record yields events in a sensible order.
var maskKinds = []struct {
	mask uint32
	kind Kind
}{
	{unix.IN_CREATE, KindCreate},
	{unix.IN_MOVED_TO, KindCreate},
	{unix.IN_OPEN, KindOpen},
	{unix.IN_MODIFY, KindModify},
	{unix.IN_ATTRIB, KindAttrib},
	{unix.IN_CLOSE_WRITE, KindCloseWrite},
	{unix.IN_CLOSE_NOWRITE, KindCloseRead},
	{unix.IN_MOVED_FROM, KindRename},
	{unix.IN_MOVE_SELF, KindRename},
	{unix.IN_DELETE, KindRemove},
	{unix.IN_DELETE_SELF, KindRemove},
}

var errShortRead = errors.New("short read from inotify")

// inotifyBackend reads raw inotify records. Unlike fsnotify it reports
// IN_CLOSE_WRITE, which is exactly the "file is stable" signal.
type inotifyBackend struct {
	fd   int
	file *os.File

	mu      sync.Mutex
	watches map[int32]string

	events    chan Event
	errors    chan error
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newInotifyBackend() (Backend, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("initialising inotify: %w", err)
	}

	b := &inotifyBackend{
		fd:      fd,
		file:    os.NewFile(uintptr(fd), "inotify"),
		watches: make(map[int32]string),
		events:  make(chan Event, 1),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go b.readLoop()

	return b, nil
}

func (b *inotifyBackend) Events() <-chan Event { return b.events }

func (b *inotifyBackend) Errors() <-chan error { return b.errors }

func (b *inotifyBackend) Add(path string, recursive bool) error {
	return addTarget(path, recursive, b.addWatch)
}

func (b *inotifyBackend) addWatch(path string) error {
	wd, err := unix.InotifyAddWatch(b.fd, path, inotifyMask)
	if err != nil {
		return fmt.Errorf("adding inotify watch for %q: %w", path, err)
	}

	b.mu.Lock()
	b.watches[int32(wd)] = path //nolint:gosec // watch descriptors are small
	b.mu.Unlock()

	return nil
}

// Close stops the read loop and releases the inotify descriptor.
func (b *inotifyBackend) Close() error {
	var err error

	b.closeOnce.Do(func() {
		close(b.done)
		err = b.file.Close()
		<-b.stopped
	})

	return err
}

func (b *inotifyBackend) readLoop() {
	defer close(b.stopped)
	defer close(b.errors)
	defer close(b.events)

	var buf [unix.SizeofInotifyEvent * 4096]byte

	for {
		n, err := b.file.Read(buf[:])
		if errors.Is(err, os.ErrClosed) {
			return
		}

		if err != nil {
			if !b.sendError(fmt.Errorf("reading inotify events: %w", err)) {
				return
			}

			continue
		}

		if !b.dispatch(buf[:n]) {
			return
		}
	}
}

// dispatch decodes every record in buf. It returns false once the backend
// is closing.
func (b *inotifyBackend) dispatch(buf []byte) bool {
	for len(buf) > 0 {
		if len(buf) < unix.SizeofInotifyEvent {
			return b.sendError(errShortRead)
		}

		wd := int32(binary.NativeEndian.Uint32(buf[0:4])) //nolint:gosec // kernel ABI
		mask := binary.NativeEndian.Uint32(buf[4:8])
		end := unix.SizeofInotifyEvent + int(binary.NativeEndian.Uint32(buf[12:16]))

		if end > len(buf) {
			return b.sendError(errShortRead)
		}

		name := strings.TrimRight(string(buf[unix.SizeofInotifyEvent:end]), "\x00")
		buf = buf[end:]

		if mask&unix.IN_Q_OVERFLOW != 0 {
			if !b.sendError(ErrOverflow) {
				return false
			}

			continue
		}

		path, ok := b.lookup(wd, mask&unix.IN_IGNORED != 0)
		if !ok {
			continue
		}

		if name != "" {
			path = filepath.Join(path, name)
		}

		for _, mk := range maskKinds {
			if mask&mk.mask != 0 && !b.send(Event{Path: path, Kind: mk.kind}) {
				return false
			}
		}
	}

	return true
}

// lookup maps a watch descriptor to its path. The kernel drops a watch
// (IN_IGNORED) when its file is deleted or unwatched.
func (b *inotifyBackend) lookup(wd int32, ignored bool) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path, ok := b.watches[wd]
	if ignored {
		delete(b.watches, wd)
	}

	return path, ok
}

func (b *inotifyBackend) send(ev Event) bool {
	select {
	case b.events <- ev:
		return true
	case <-b.done:
		return false
	}
}

func (b *inotifyBackend) sendError(err error) bool {
	select {
	case b.errors <- err:
		return true
	case <-b.done:
		return false
	}
}
