package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// VacuumResult summarizes one full pass over the watched roots.
type VacuumResult struct {
	Seen        int           `json:"seen"`
	Indexed     int           `json:"indexed"`
	Updated     int           `json:"updated"`
	Unchanged   int           `json:"unchanged"`
	Deleted     int           `json:"deleted"`
	Skipped     int           `json:"skipped"`
	Errors      int           `json:"errors"`
	Duration    time.Duration `json:"duration"`
	Interrupted bool          `json:"interrupted"`
}

func (r *VacuumResult) tally(c change) {
	switch c {
	case changeInserted:
		r.Indexed++
	case changeUpdated:
		r.Updated++
	case changeDeleted:
		r.Deleted++
	case changeSkipped:
		r.Skipped++
	case changeFailed:
		r.Errors++
	default:
		r.Unchanged++
	}
}

// Vacuum walks every root, upserting each eligible file, then deletes the
// documents of paths the walk did not see. Only one vacuum runs at a time;
// a concurrent caller waits for the running one to finish first.
//
// A cancelled vacuum returns the partial result with Interrupted set and
// skips deletion reconciliation.
func (w *Writer) Vacuum(ctx context.Context) (VacuumResult, error) {
	w.vacuumMu.Lock()
	defer w.vacuumMu.Unlock()

	start := time.Now()
	w.tracker.VacuumStarted()
	w.logger.Info("vacuum started")

	result, err := w.vacuum(ctx)
	result.Duration = time.Since(start)
	w.tracker.VacuumFinished(err == nil)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Interrupted = true
			w.logger.Info("vacuum interrupted", "seen", result.Seen, "duration", result.Duration)
		} else {
			w.logger.Error("vacuum failed", "error", err)
		}
		return result, err
	}

	w.logger.Info("vacuum complete",
		"seen", result.Seen,
		"indexed", result.Indexed,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"errors", result.Errors,
		"duration", result.Duration,
	)
	return result, nil
}

func (w *Writer) vacuum(ctx context.Context) (VacuumResult, error) {
	var result VacuumResult
	seen := make(map[string]struct{})

	for candidate := range w.source.Candidates(ctx) {
		if !w.filter.EligiblePath(candidate.Path) {
			result.Skipped++
			continue
		}
		if err := w.throttle(ctx, candidate.Size); err != nil {
			return result, err
		}

		seen[candidate.Path] = struct{}{}
		result.Seen++
		c, err := w.submit(ctx, request{op: opUpsert, path: candidate.Path})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		if err != nil {
			c = changeFailed
		}
		result.tally(c)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	paths, err := w.store.Paths()
	if err != nil {
		return result, fmt.Errorf("listing indexed paths: %w", err)
	}
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		c, err := w.submit(ctx, request{op: opReconcile, path: path})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		if err != nil {
			c = changeFailed
		}
		if c == changeDeleted || c == changeFailed {
			result.tally(c)
		}
	}

	if err := w.store.MarkIndexed(time.Now()); err != nil {
		return result, fmt.Errorf("recording vacuum completion: %w", err)
	}
	return result, nil
}

// throttle waits until the vacuum may read size more bytes.
func (w *Writer) throttle(ctx context.Context, size int64) error {
	if w.limiter == nil || size <= 0 {
		return nil
	}
	n := min(int(size), w.limiter.Burst())
	return w.limiter.WaitN(ctx, n)
}

// RequestVacuum asks the scheduler for a vacuum without waiting for it.
// Requests made while one is pending collapse into a single run.
func (w *Writer) RequestVacuum() {
	select {
	case w.vacuumRequests <- struct{}{}:
	default:
	}
}

// RunScheduler runs a vacuum every interval (0 disables the timer) and
// whenever RequestVacuum is called, until ctx is done.
func (w *Writer) RunScheduler(ctx context.Context, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
		case <-w.vacuumRequests:
		}
		if _, err := w.Vacuum(ctx); err != nil && ctx.Err() != nil {
			return nil
		}
	}
}
