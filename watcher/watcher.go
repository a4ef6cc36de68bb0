package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PairWindow is how long a rename waits for the matching create before it
// is reported as a delete.
const PairWindow = 100 * time.Millisecond

// DirFilter is used by the watcher to prune excluded directories.
type DirFilter interface {
	ShouldSkipDir(absolutePath string) bool
}

// Watcher provides recursive file system watching over all roots. It turns
// raw fsnotify events into Events and pairs renames into moves.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	filter    DirFilter
	logger    *slog.Logger

	events chan Event
	resync chan struct{}
	done   chan struct{}
	closed sync.Once

	mu      sync.Mutex
	dirs    map[string]struct{}
	pending *pendingRename
}

type pendingRename struct {
	path  string
	at    time.Time
	timer *time.Timer
}

// NewWatcher creates a watcher on the given roots. It registers all
// non-excluded subdirectories. Missing roots are logged and skipped.
func NewWatcher(roots []string, filter DirFilter, logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		filter:    filter,
		logger:    logger,
		events:    make(chan Event, 256),
		resync:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		dirs:      make(map[string]struct{}),
	}

	for _, root := range roots {
		if _, err := os.Stat(root); err != nil {
			logger.Warn("not watching missing root", "root", root, "error", err)
			continue
		}
		w.addTree(root, false)
	}
	return w, nil
}

// Events returns the channel that receives converted events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Resync receives a value whenever events may have been lost and the index
// needs a full vacuum to catch up.
func (w *Watcher) Resync() <-chan struct{} {
	return w.resync
}

// WatchedDirs returns the number of directories under watch.
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Run listens for file system events until ctx is done or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				w.lost("event channel closed")
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.handleError(err)
		}
	}
}

func (w *Watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.lost("event queue overflow")
		return
	}
	w.logger.Warn("watcher error", "error", err)
	w.lost("watcher error")
}

// lost signals that events may have been dropped.
func (w *Watcher) lost(reason string) {
	select {
	case <-w.done:
		return
	default:
	}
	w.logger.Warn("requesting resync", "reason", reason)
	select {
	case w.resync <- struct{}{}:
	default:
	}
}

// handleEvent converts a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	now := time.Now()

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			// A directory moved in from outside or freshly created
			w.flushPending()
			if !w.filter.ShouldSkipDir(path) {
				w.addTree(path, true)
			}
			return
		}
		if from, ok := w.takePending(); ok {
			w.emit(Event{Path: path, From: from, Kind: Moved, ObservedAt: now})
			return
		}
		w.emit(Event{Path: path, Kind: Created, ObservedAt: now})

	case event.Has(fsnotify.Write):
		w.emit(Event{Path: path, Kind: Modified, ObservedAt: now})

	case event.Has(fsnotify.Remove):
		if w.forgetDir(path) {
			w.lost("watched directory removed")
			return
		}
		w.emit(Event{Path: path, Kind: Deleted, ObservedAt: now})

	case event.Has(fsnotify.Rename):
		if w.forgetDir(path) {
			w.lost("watched directory renamed")
			return
		}
		w.holdRename(path, now)
	}
}

// holdRename waits PairWindow for the create that completes a move.
func (w *Watcher) holdRename(path string, at time.Time) {
	w.flushPending()

	w.mu.Lock()
	defer w.mu.Unlock()
	pending := &pendingRename{path: path, at: at}
	// Once the timer has fired, Stop fails everywhere else and this
	// callback alone reports the delete.
	pending.timer = time.AfterFunc(PairWindow, func() {
		w.mu.Lock()
		if w.pending == pending {
			w.pending = nil
		}
		w.mu.Unlock()
		w.emit(Event{Path: pending.path, Kind: Deleted, ObservedAt: pending.at})
	})
	w.pending = pending
}

func (w *Watcher) takePending() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return "", false
	}
	pending := w.pending
	w.pending = nil
	if !pending.timer.Stop() {
		// The timer fired first; its callback reports the delete.
		return "", false
	}
	return pending.path, true
}

// flushPending reports an unpaired rename as a delete right away.
func (w *Watcher) flushPending() {
	w.mu.Lock()
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()
	if pending != nil && pending.timer.Stop() {
		w.emit(Event{Path: pending.path, Kind: Deleted, ObservedAt: pending.at})
	}
}

// addTree watches dir and every non-excluded directory below it. With
// announce set, files found inside are reported as created, since their
// own create events happened before the watch existed.
func (w *Watcher) addTree(dir string, announce bool) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip entries that can't be read
		}
		if !d.IsDir() {
			if announce && d.Type().IsRegular() {
				w.emit(Event{Path: path, Kind: Created, ObservedAt: time.Now()})
			}
			return nil
		}
		if path != dir && w.filter.ShouldSkipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.mu.Lock()
		w.dirs[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// forgetDir drops path and everything below it from the watched set and
// reports whether path was a watched directory.
func (w *Watcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[path]; !ok {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
			w.fsWatcher.Remove(dir)
		}
	}
	return true
}

func (w *Watcher) emit(event Event) {
	select {
	case w.events <- event:
	case <-w.done:
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}
