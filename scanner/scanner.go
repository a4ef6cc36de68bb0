// Package scanner walks the watched roots and yields indexing candidates.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

// errStop aborts a walk when the consumer stops iterating or the context ends.
var errStop = errors.New("scan stopped")

// DirFilter prunes directories before they are opened.
type DirFilter interface {
	ShouldSkipDir(absolutePath string) bool
}

// Candidate is a regular file found under a watched root. Eligibility beyond
// directory pruning is left to the consumer.
type Candidate struct {
	Path    string
	Size    int64
	ModTime int64 // unix nanoseconds
}

// Scanner produces a lazy, restartable walk over all roots.
type Scanner struct {
	roots  []string
	filter DirFilter
	logger *slog.Logger
}

// New creates a scanner over the given roots.
func New(roots []string, filter DirFilter, logger *slog.Logger) *Scanner {
	return &Scanner{roots: roots, filter: filter, logger: logger}
}

// Candidates walks every root depth-first in lexical order. Nothing is read
// until the sequence is iterated; each iteration starts a fresh walk.
// Breaking out of the loop or cancelling ctx stops the walk early.
// Unreadable entries and missing roots are logged and skipped.
func (s *Scanner) Candidates(ctx context.Context) iter.Seq[Candidate] {
	return func(yield func(Candidate) bool) {
		for _, root := range s.roots {
			if _, err := os.Stat(root); err != nil {
				s.logger.Warn("skipping root", "root", root, "error", err)
				continue
			}
			if err := s.walk(ctx, root, yield); err != nil {
				return
			}
		}
	}
}

func (s *Scanner) walk(ctx context.Context, root string, yield func(Candidate) bool) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return errStop
		}
		if err != nil {
			s.logger.Debug("skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && s.filter.ShouldSkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			s.logger.Debug("skipping unreadable file", "path", path, "error", err)
			return nil
		}
		if !yield(Candidate{Path: path, Size: info.Size(), ModTime: info.ModTime().UnixNano()}) {
			return errStop
		}
		return nil
	})
	if errors.Is(err, errStop) {
		return err
	}
	if err != nil {
		s.logger.Warn("walk failed", "root", root, "error", err)
	}
	return nil
}
