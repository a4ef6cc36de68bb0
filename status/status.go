package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrNoStatus is returned by Read when no status file has been written yet.
var ErrNoStatus = errors.New("status file not found")

// Snapshot is the content of the status file.
type Snapshot struct {
	Running         bool       `json:"running"`
	PID             int        `json:"pid"`
	InstanceID      string     `json:"instance_id"`
	Started         time.Time  `json:"started"`
	Updated         time.Time  `json:"updated"`
	FilesIndexed    int64      `json:"files_indexed"`
	FilesUpdated    int64      `json:"files_updated"`
	FilesDeleted    int64      `json:"files_deleted"`
	FilesSkipped    int64      `json:"files_skipped"`
	Suppressed      int64      `json:"events_suppressed"`
	Errors          int64      `json:"errors"`
	Resyncs         int64      `json:"resyncs"`
	LastVacuum      *time.Time `json:"last_vacuum,omitempty"`
	VacuumRunning   bool       `json:"vacuum_running"`
	TotalFiles      int64      `json:"total_files"`
	TotalCharacters int64      `json:"total_characters"`
	IndexPath       string     `json:"index_path"`
}

// Totals reports the current size of the index.
type Totals func() (files int64, chars int64)

// Tracker counts indexing outcomes and periodically persists them.
// Counter methods are safe to call from any goroutine.
type Tracker struct {
	path       string
	indexPath  string
	instanceID string
	started    time.Time
	logger     *slog.Logger

	filesIndexed atomic.Int64
	filesUpdated atomic.Int64
	filesDeleted atomic.Int64
	filesSkipped atomic.Int64
	suppressed   atomic.Int64
	errors       atomic.Int64
	resyncs      atomic.Int64
	vacuuming    atomic.Bool

	mu         sync.Mutex
	lastVacuum time.Time
	totals     Totals

	// writeMu keeps heartbeat and shutdown writes from interleaving.
	writeMu sync.Mutex
}

// NewTracker creates a tracker that writes to path. An empty path disables
// writing; counters still work.
func NewTracker(path, indexPath string, logger *slog.Logger) *Tracker {
	return &Tracker{
		path:       path,
		indexPath:  indexPath,
		instanceID: uuid.NewString(),
		started:    time.Now(),
		logger:     logger,
	}
}

// SetTotals installs the source of total_files and total_characters.
func (t *Tracker) SetTotals(totals Totals) {
	t.mu.Lock()
	t.totals = totals
	t.mu.Unlock()
}

// FileIndexed counts a file added to the index.
func (t *Tracker) FileIndexed() { t.filesIndexed.Add(1) }

// FileUpdated counts an indexed file whose content changed.
func (t *Tracker) FileUpdated() { t.filesUpdated.Add(1) }

// FileDeleted counts a document removed from the index.
func (t *Tracker) FileDeleted() { t.filesDeleted.Add(1) }

// FileSkipped counts a path rejected by the eligibility rules.
func (t *Tracker) FileSkipped() { t.filesSkipped.Add(1) }

// EventSuppressed counts a watch event dropped by the debouncer.
func (t *Tracker) EventSuppressed() { t.suppressed.Add(1) }

// Error counts a path that could not be read or indexed.
func (t *Tracker) Error() { t.errors.Add(1) }

// Resync counts a vacuum requested because watch events may have been lost.
func (t *Tracker) Resync() { t.resyncs.Add(1) }

// VacuumStarted marks a vacuum as running.
func (t *Tracker) VacuumStarted() { t.vacuuming.Store(true) }

// VacuumRunning reports whether a vacuum is in progress.
func (t *Tracker) VacuumRunning() bool { return t.vacuuming.Load() }

// VacuumFinished clears the running flag and, for completed runs, records
// the completion time.
func (t *Tracker) VacuumFinished(completed bool) {
	if completed {
		t.mu.Lock()
		t.lastVacuum = time.Now()
		t.mu.Unlock()
	}
	t.vacuuming.Store(false)
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot(running bool) Snapshot {
	t.mu.Lock()
	lastVacuum := t.lastVacuum
	totals := t.totals
	t.mu.Unlock()

	snap := Snapshot{
		Running:       running,
		PID:           os.Getpid(),
		InstanceID:    t.instanceID,
		Started:       t.started,
		Updated:       time.Now(),
		FilesIndexed:  t.filesIndexed.Load(),
		FilesUpdated:  t.filesUpdated.Load(),
		FilesDeleted:  t.filesDeleted.Load(),
		FilesSkipped:  t.filesSkipped.Load(),
		Suppressed:    t.suppressed.Load(),
		Errors:        t.errors.Load(),
		Resyncs:       t.resyncs.Load(),
		VacuumRunning: t.vacuuming.Load(),
		IndexPath:     t.indexPath,
	}
	if !lastVacuum.IsZero() {
		snap.LastVacuum = &lastVacuum
	}
	if totals != nil {
		snap.TotalFiles, snap.TotalCharacters = totals()
	}
	return snap
}

// Write persists the snapshot via a temp file and rename, so readers never
// observe a partial file.
func (t *Tracker) Write(running bool) error {
	if t.path == "" {
		return nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	output, err := json.MarshalIndent(t.Snapshot(running), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	output = append(output, '\n')

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(output); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, t.path, err)
	}
	return nil
}

// RunHeartbeat writes the status file immediately, then every interval until
// ctx is done, and a last time with running=false on the way out.
func (t *Tracker) RunHeartbeat(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t.beat(true)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.beat(false)
			return nil
		case <-ticker.C:
			t.beat(true)
		}
	}
}

func (t *Tracker) beat(running bool) {
	if err := t.Write(running); err != nil {
		t.logger.Warn("status write failed", "path", t.path, "error", err)
	}
}

// Read loads a status file written by a Tracker.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrNoStatus
		}
		return Snapshot{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return snap, nil
}
