package watch

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fsnotifyBackend is the portable backend. fsnotify does not expose
// close-write, so a burst of writes to a path followed by settle of quiet is
// reported as one synthesized KindCloseWrite for that path.
type fsnotifyBackend struct {
	w      *fsnotify.Watcher
	settle *Debouncer

	// mu guards closed; senders hold it for reading so the channels are
	// never closed under them.
	mu     sync.RWMutex
	closed bool

	events    chan Event
	errors    chan error
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func newFsnotifyBackend(settle time.Duration) (Backend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	b := &fsnotifyBackend{
		w:       w,
		events:  make(chan Event, 1),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	b.settle = NewDebouncer(settle, func(paths []string) {
		for _, p := range paths {
			if !b.emit(Event{Path: p, Kind: KindCloseWrite}) {
				return
			}
		}
	})

	go b.loop()

	return b, nil
}

func (b *fsnotifyBackend) Events() <-chan Event { return b.events }

func (b *fsnotifyBackend) Errors() <-chan error { return b.errors }

func (b *fsnotifyBackend) Add(path string, recursive bool) error {
	return addTarget(path, recursive, b.w.Add)
}

// Close stops the event loop and the underlying fsnotify watcher.
func (b *fsnotifyBackend) Close() error {
	var err error

	b.closeOnce.Do(func() {
		close(b.done)
		err = b.w.Close()
		<-b.stopped
	})

	return err
}

func (b *fsnotifyBackend) loop() {
	defer close(b.stopped)
	defer b.shutdown()

	for {
		select {
		case <-b.done:
			return

		case ev, ok := <-b.w.Events:
			if !ok {
				return
			}

			for _, kind := range opKinds(ev.Op) {
				if !b.emit(Event{Path: ev.Name, Kind: kind}) {
					return
				}
			}

			if ev.Has(fsnotify.Write) {
				b.settle.Trigger(ev.Name)
			}

		case err, ok := <-b.w.Errors:
			if !ok {
				return
			}

			if !b.emitError(err) {
				return
			}
		}
	}
}

func (b *fsnotifyBackend) shutdown() {
	b.settle.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	close(b.events)
	close(b.errors)
}

func (b *fsnotifyBackend) emit(ev Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}

	select {
	case b.events <- ev:
		return true
	case <-b.done:
		return false
	}
}

func (b *fsnotifyBackend) emitError(err error) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return false
	}

	select {
	case b.errors <- err:
		return true
	case <-b.done:
		return false
	}
}

// opKinds translates an fsnotify op, which may combine several bits.
func opKinds(op fsnotify.Op) []Kind {
	var kinds []Kind

	if op.Has(fsnotify.Create) {
		kinds = append(kinds, KindCreate)
	}

	if op.Has(fsnotify.Write) {
		kinds = append(kinds, KindModify)
	}

	if op.Has(fsnotify.Chmod) {
		kinds = append(kinds, KindAttrib)
	}

	if op.Has(fsnotify.Rename) {
		kinds = append(kinds, KindRename)
	}

	if op.Has(fsnotify.Remove) {
		kinds = append(kinds, KindRemove)
	}

	return kinds
}
