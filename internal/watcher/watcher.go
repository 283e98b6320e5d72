// Package watcher reports settled file changes under a directory tree. The
// web server uses it to reload templates from disk during development.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/librarydesk/librarian/internal/logger"
)

// Watcher monitors file system changes with fsnotify, debouncing bursts
// of writes to the same file into one event.
type Watcher struct {
	logger *logger.Logger
	opts   Options
	fs     *fsnotify.Watcher

	mu      sync.Mutex // protects pending and stopped
	pending map[string]*time.Timer
	stopped bool

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// New creates a new file watcher.
func New(log *logger.Logger, opts Options) (*Watcher, error) {
	opts.setDefaults()
	if log == nil {
		log = logger.Discard()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		logger:  log.WithComponent("watcher"),
		opts:    opts,
		fs:      fw,
		pending: make(map[string]*time.Timer),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored. Directories are watched recursively;
// a file is watched through its parent directory.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return w.fs.Add(filepath.Dir(path))
	}
	return w.watchDir(path)
}

func (w *Watcher) watchDir(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.opts.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		w.logger.Debug("added watch", "path", p)
		return nil
	})
}

// Start begins processing events in the background until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.processEvents(ctx)
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.WithError(err).Warn("watcher error dropped")
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := event.Name
	if w.opts.shouldIgnore(path) {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.watchDir(path); err != nil {
				w.logger.WithError(err).Warn("failed to watch new directory", "path", path)
			}
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		w.mu.Lock()
		if t, ok := w.pending[path]; ok {
			t.Stop()
			delete(w.pending, path)
		}
		w.emit(Event{Type: EventRemoved, Path: path})
		w.mu.Unlock()
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
		w.settle(path)
	}
}

// settle (re)starts the quiet period for path.
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.opts.SettleDelay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.pending, path)
		w.emit(Event{Type: EventModified, Path: path})
	})
}

// emit must be called with w.mu held. Events are dropped once stopped or
// when the buffer is full.
func (w *Watcher) emit(event Event) {
	if w.stopped {
		return
	}
	select {
	case w.events <- event:
	default:
		w.logger.Warn("watcher event dropped", "path", event.Path, "type", string(event.Type))
	}
}

// Events returns the channel for receiving file system events.
// It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel for receiving errors. It is closed by Stop.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher and releases resources. It is safe to call more
// than once.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.done)

		w.mu.Lock()
		w.stopped = true
		for _, t := range w.pending {
			t.Stop()
		}
		clear(w.pending)
		w.mu.Unlock()

		err = w.fs.Close()
		w.wg.Wait()

		close(w.events)
		close(w.errors)
	})
	return err
}
