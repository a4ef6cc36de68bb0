package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Checker applies the eligibility rules. Implemented by *ignore.Matcher.
type Checker interface {
	Eligible(absolutePath string, size int64, isDir bool) bool
	EligiblePath(absolutePath string) bool
	Roots() []string
}

// Sink applies index changes. Implemented by *indexer.Writer.
type Sink interface {
	Upsert(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	Move(ctx context.Context, from, to string) error
}

// Recorder counts events that never reach the sink.
type Recorder interface {
	FileSkipped()
	EventSuppressed()
}

// Dispatcher filters, debounces and forwards watcher events.
type Dispatcher struct {
	checker   Checker
	sink      Sink
	recorder  Recorder
	debouncer *Debouncer
	logger    *slog.Logger

	// OnIgnoreChange is called when the .gitignore file of a root changes.
	// Nested .gitignore files are not read by the matcher and are indexed
	// like any other file, subject to the extension allow-list.
	OnIgnoreChange func()
}

// NewDispatcher creates a dispatcher with the given quiet window.
func NewDispatcher(checker Checker, sink Sink, recorder Recorder, window time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		checker:   checker,
		sink:      sink,
		recorder:  recorder,
		debouncer: NewDebouncer(window),
		logger:    logger,
	}
}

// Run handles events until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-events:
			if err := d.Handle(ctx, event); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.logger.Debug("event not applied", "path", event.Path, "kind", event.Kind, "error", err)
			}
		}
	}
}

func (d *Dispatcher) isRootIgnoreFile(paths ...string) bool {
	for _, path := range paths {
		if filepath.Base(path) != ".gitignore" {
			continue
		}
		dir := filepath.Dir(path)
		for _, root := range d.checker.Roots() {
			if dir == root {
				return true
			}
		}
	}
	return false
}

// Handle processes one event.
func (d *Dispatcher) Handle(ctx context.Context, event Event) error {
	if d.OnIgnoreChange != nil && d.isRootIgnoreFile(event.Path, event.From) {
		d.logger.Info("reloading ignore rules", "trigger", event.Path)
		d.OnIgnoreChange()
		return nil
	}

	switch event.Kind {
	case Created, Modified:
		return d.changed(ctx, event.Path)
	case Deleted:
		return d.deleted(ctx, event.Path)
	case Moved:
		return d.moved(ctx, event.From, event.Path)
	default:
		return nil
	}
}

func (d *Dispatcher) changed(ctx context.Context, path string) error {
	if !d.checker.EligiblePath(path) {
		d.recorder.FileSkipped()
		return nil
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return d.deleted(ctx, path)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return nil
	}
	if !d.checker.Eligible(path, info.Size(), false) {
		// Grew past the size ceiling
		d.recorder.FileSkipped()
		return d.sink.Delete(ctx, path)
	}

	if !d.debouncer.Allow(path) {
		d.recorder.EventSuppressed()
		d.logger.Debug("event suppressed", "path", path)
		return nil
	}
	return d.sink.Upsert(ctx, path)
}

func (d *Dispatcher) deleted(ctx context.Context, path string) error {
	d.debouncer.Forget(path)
	if !d.checker.EligiblePath(path) {
		return nil
	}
	return d.sink.Delete(ctx, path)
}

func (d *Dispatcher) moved(ctx context.Context, from, to string) error {
	d.debouncer.Forget(from)
	fromIndexed := d.checker.EligiblePath(from)

	toEligible := false
	if info, err := os.Stat(to); err == nil && !info.IsDir() {
		toEligible = d.checker.Eligible(to, info.Size(), false)
	}

	switch {
	case fromIndexed && toEligible:
		return d.sink.Move(ctx, from, to)
	case fromIndexed:
		return d.sink.Delete(ctx, from)
	case toEligible:
		return d.sink.Upsert(ctx, to)
	default:
		d.recorder.FileSkipped()
		return nil
	}
}
