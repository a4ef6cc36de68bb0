package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/contentindex/ignore"
)

func startWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0755))

	matcher := ignore.NewMatcher(ignore.MatcherOptions{Roots: []string{root}})
	w, err := NewWatcher([]string{root}, matcher, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		w.Close()
	})
	return w, root
}

// waitFor reads events until one satisfies match.
func waitFor(t *testing.T, w *Watcher, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-w.Events():
			if match(event) {
				return event
			}
		case <-deadline:
			t.Fatal("timed out waiting for watcher event")
			return Event{}
		}
	}
}

func Test_Watcher_SkipsExcludedDirs(t *testing.T) {
	w, _ := startWatcher(t)

	// root and docs; node_modules is pruned
	assert.Equal(t, 2, w.WatchedDirs())
}

func Test_Watcher_CreateAndModify(t *testing.T) {
	w, root := startWatcher(t)
	path := filepath.Join(root, "docs", "notes.md")

	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))
	created := waitFor(t, w, func(e Event) bool { return e.Path == path })
	assert.Equal(t, Created, created.Kind)
	assert.False(t, created.ObservedAt.IsZero())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(" two")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	waitFor(t, w, func(e Event) bool { return e.Path == path && e.Kind == Modified })
}

func Test_Watcher_Delete(t *testing.T) {
	w, root := startWatcher(t)
	path := filepath.Join(root, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0644))
	waitFor(t, w, func(e Event) bool { return e.Path == path })

	require.NoError(t, os.Remove(path))
	waitFor(t, w, func(e Event) bool { return e.Path == path && e.Kind == Deleted })
}

func Test_Watcher_RenamePairsIntoMove(t *testing.T) {
	w, root := startWatcher(t)
	from := filepath.Join(root, "a.md")
	to := filepath.Join(root, "b.md")
	require.NoError(t, os.WriteFile(from, []byte("content"), 0644))
	waitFor(t, w, func(e Event) bool { return e.Path == from })

	require.NoError(t, os.Rename(from, to))
	moved := waitFor(t, w, func(e Event) bool { return e.Kind == Moved || e.Path == to })
	assert.Equal(t, Moved, moved.Kind)
	assert.Equal(t, from, moved.From)
	assert.Equal(t, to, moved.Path)
}

func Test_Watcher_RenameOutOfTreeBecomesDelete(t *testing.T) {
	w, root := startWatcher(t)
	path := filepath.Join(root, "a.md")
	outside := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	waitFor(t, w, func(e Event) bool { return e.Path == path })

	require.NoError(t, os.Rename(path, outside))
	deleted := waitFor(t, w, func(e Event) bool { return e.Path == path && e.Kind == Deleted })
	assert.Empty(t, deleted.From)
}

// expired holds a rename and keeps the lock until its pairing timer has
// fired, so the timer callback is still waiting when the caller runs.
func expired(w *Watcher, path string) {
	w.holdRename(path, time.Now())
	w.mu.Lock()
	time.Sleep(2 * PairWindow)
	w.mu.Unlock()
}

// drainDeletes counts the delete events for path until the channel stays
// quiet for a while.
func drainDeletes(w *Watcher, path string) int {
	count := 0
	for {
		select {
		case event := <-w.Events():
			if event.Path == path && event.Kind == Deleted {
				count++
			}
		case <-time.After(3 * PairWindow):
			return count
		}
	}
}

func Test_Watcher_ExpiredRenameStillDeletes(t *testing.T) {
	root := t.TempDir()
	matcher := ignore.NewMatcher(ignore.MatcherOptions{Roots: []string{root}})
	w, err := NewWatcher([]string{root}, matcher, testLogger())
	require.NoError(t, err)
	defer w.Close()
	path := filepath.Join(root, "gone.md")

	for round := 0; round < 5; round++ {
		expired(w, path)
		_, paired := w.takePending()
		assert.False(t, paired)
		assert.Equal(t, 1, drainDeletes(w, path), "round %d: take", round)

		expired(w, path)
		w.flushPending()
		assert.Equal(t, 1, drainDeletes(w, path), "round %d: flush", round)
	}
}

func Test_Watcher_NewDirectoryIsWatched(t *testing.T) {
	w, root := startWatcher(t)
	dir := filepath.Join(root, "fresh")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.Eventually(t, func() bool { return w.WatchedDirs() == 3 }, 2*time.Second, 10*time.Millisecond)

	path := filepath.Join(dir, "inside.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))
	waitFor(t, w, func(e Event) bool { return e.Path == path && e.Kind == Created })
}

func Test_Watcher_ErrorRequestsResync(t *testing.T) {
	w, _ := startWatcher(t)

	w.handleError(fsnotify.ErrEventOverflow)
	w.handleError(errors.New("boom"))

	select {
	case <-w.Resync():
	case <-time.After(time.Second):
		t.Fatal("expected a resync request")
	}
	// Requests coalesce into one pending signal.
	select {
	case <-w.Resync():
		t.Fatal("expected a single pending resync")
	default:
	}
}

func Test_Watcher_RemovedDirectoryRequestsResync(t *testing.T) {
	w, root := startWatcher(t)

	require.NoError(t, os.RemoveAll(filepath.Join(root, "docs")))

	select {
	case <-w.Resync():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a resync request")
	}
}
