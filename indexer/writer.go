// Package indexer owns every mutation of the index. A single goroutine
// applies upserts, deletes and moves in arrival order; vacuums and the
// watcher only submit requests to it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/lexandro/contentindex/digest"
	"github.com/lexandro/contentindex/doctype"
	"github.com/lexandro/contentindex/extract"
	"github.com/lexandro/contentindex/index"
	"github.com/lexandro/contentindex/scanner"
	"github.com/lexandro/contentindex/status"
)

// Filter decides eligibility. Implemented by *ignore.Matcher.
type Filter interface {
	Eligible(absolutePath string, size int64, isDir bool) bool
	EligiblePath(absolutePath string) bool
	IsFileTooLarge(fileSize int64) bool
	MaxFileSizeBytes() int64
}

// Source yields vacuum candidates. Implemented by *scanner.Scanner.
type Source interface {
	Candidates(ctx context.Context) iter.Seq[scanner.Candidate]
}

// Options tunes the writer.
type Options struct {
	// QueueSize is the capacity of the request channel.
	QueueSize int
	// VacuumIOLimit throttles vacuum reads in bytes per second; 0 disables.
	VacuumIOLimit int64
}

type operation int

const (
	opUpsert operation = iota
	opDelete
	opMove
	opReconcile
)

// change is what applying one request did to the index.
type change int

const (
	changeNone change = iota
	changeInserted
	changeUpdated
	changeDeleted
	changeSkipped
	changeFailed
)

type request struct {
	op   operation
	path string
	from string
	done chan response
}

type response struct {
	change change
	err    error
}

// Writer is the single owner of index mutations.
type Writer struct {
	store   *index.Store
	filter  Filter
	source  Source
	tracker *status.Tracker
	logger  *slog.Logger
	limiter *rate.Limiter

	requests chan request

	vacuumMu       sync.Mutex
	vacuumRequests chan struct{}
}

// New creates a writer. Run must be started before any request is submitted.
func New(store *index.Store, filter Filter, source Source, tracker *status.Tracker, logger *slog.Logger, options Options) *Writer {
	if options.QueueSize <= 0 {
		options.QueueSize = 256
	}

	var limiter *rate.Limiter
	if options.VacuumIOLimit > 0 {
		burst := max(options.VacuumIOLimit, filter.MaxFileSizeBytes())
		limiter = rate.NewLimiter(rate.Limit(options.VacuumIOLimit), int(burst))
	}

	return &Writer{
		store:          store,
		filter:         filter,
		source:         source,
		tracker:        tracker,
		logger:         logger,
		limiter:        limiter,
		requests:       make(chan request, options.QueueSize),
		vacuumRequests: make(chan struct{}, 1),
	}
}

// Run applies requests until ctx is done.
func (w *Writer) Run(ctx context.Context) error {
	w.logger.Debug("writer started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("writer stopped")
			return nil
		case req := <-w.requests:
			c, err := w.apply(req)
			req.done <- response{change: c, err: err}
		}
	}
}

// Upsert indexes path, replacing a stale document or removing one that is
// no longer eligible.
func (w *Writer) Upsert(ctx context.Context, path string) error {
	_, err := w.submit(ctx, request{op: opUpsert, path: path})
	return err
}

// Delete removes the document for path.
func (w *Writer) Delete(ctx context.Context, path string) error {
	_, err := w.submit(ctx, request{op: opDelete, path: path})
	return err
}

// Move removes from and then indexes to.
func (w *Writer) Move(ctx context.Context, from, to string) error {
	_, err := w.submit(ctx, request{op: opMove, path: to, from: from})
	return err
}

func (w *Writer) submit(ctx context.Context, req request) (change, error) {
	req.done = make(chan response, 1)
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return changeNone, ctx.Err()
	}
	select {
	case resp := <-req.done:
		return resp.change, resp.err
	case <-ctx.Done():
		return changeNone, ctx.Err()
	}
}

func (w *Writer) apply(req request) (change, error) {
	switch req.op {
	case opUpsert:
		return w.upsert(req.path)
	case opDelete:
		return w.remove(req.path)
	case opMove:
		if _, err := w.remove(req.from); err != nil {
			return changeFailed, err
		}
		return w.upsert(req.path)
	case opReconcile:
		return w.reconcile(req.path)
	default:
		return changeNone, fmt.Errorf("unknown operation %d", req.op)
	}
}

// upsert runs the read, extract, hash and store protocol for one path.
func (w *Writer) upsert(path string) (change, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return w.remove(path)
	}
	if err != nil {
		return w.fail(path, "stat failed", err)
	}
	if info.IsDir() {
		return changeNone, nil
	}
	if !w.filter.Eligible(path, info.Size(), false) {
		w.logger.Debug("skipping ineligible file", "path", path, "size", info.Size())
		return w.skip(path)
	}

	data, err := readFileWithRetry(path)
	if errors.Is(err, fs.ErrNotExist) {
		return w.remove(path)
	}
	if err != nil {
		return w.fail(path, "read failed", err)
	}

	docType := doctype.FromPath(path)
	content, err := extract.Text(docType, data)
	if errors.Is(err, extract.ErrBinary) {
		w.logger.Debug("skipping binary file", "path", path)
		return w.skip(path)
	}
	if err != nil {
		return w.fail(path, "extract failed", err)
	}

	doc := index.Document{
		Path:     path,
		Name:     filepath.Base(path),
		Type:     docType,
		Content:  content,
		Preview:  extract.Preview(content),
		Modified: info.ModTime(),
		Hash:     digest.Sum(data),
		Chars:    int64(utf8.RuneCountInString(content)),
	}

	outcome, err := w.store.Upsert(doc)
	if err != nil {
		return w.fail(path, "index update failed", err)
	}
	switch outcome {
	case index.Inserted:
		w.tracker.FileIndexed()
		w.logger.Debug("indexed", "path", path, "chars", doc.Chars)
		return changeInserted, nil
	case index.Updated:
		w.tracker.FileUpdated()
		w.logger.Debug("updated", "path", path, "chars", doc.Chars)
		return changeUpdated, nil
	default:
		return changeNone, nil
	}
}

// skip drops any document left for a path that stopped being eligible.
func (w *Writer) skip(path string) (change, error) {
	w.tracker.FileSkipped()
	if c, err := w.remove(path); c == changeDeleted || err != nil {
		return c, err
	}
	return changeSkipped, nil
}

func (w *Writer) remove(path string) (change, error) {
	removed, err := w.store.Delete(path)
	if err != nil {
		return w.fail(path, "index delete failed", err)
	}
	if !removed {
		return changeNone, nil
	}
	w.tracker.FileDeleted()
	w.logger.Debug("removed from index", "path", path)
	return changeDeleted, nil
}

// reconcile deletes a document the vacuum did not see, unless the file has
// appeared since the walk passed it.
func (w *Writer) reconcile(path string) (change, error) {
	info, err := os.Stat(path)
	if err == nil && w.filter.Eligible(path, info.Size(), info.IsDir()) {
		return changeNone, nil
	}
	return w.remove(path)
}

func (w *Writer) fail(path, msg string, err error) (change, error) {
	w.tracker.Error()
	w.logger.Warn(msg, "path", path, "error", err)
	return changeFailed, fmt.Errorf("%s %s: %w", msg, path, err)
}

// readFileWithRetry attempts to read a file, retrying once after a short delay
// if the file is locked (common on Windows when editors are saving).
func readFileWithRetry(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		time.Sleep(50 * time.Millisecond)
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
