package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lexandro/contentindex/config"
	"github.com/lexandro/contentindex/ignore"
	"github.com/lexandro/contentindex/index"
	"github.com/lexandro/contentindex/indexer"
	"github.com/lexandro/contentindex/scanner"
	"github.com/lexandro/contentindex/status"
	"github.com/lexandro/contentindex/tools"
)

var errLocked = errors.New("another contentindex process is using the data directory")

// acquireLock takes the exclusive process lock on the data directory so that
// only one process writes the index.
func acquireLock(cfg *config.Config) (*flock.Flock, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock: %s)", errLocked, cfg.LockPath())
	}
	return lock, nil
}

func newMatcher(cfg *config.Config) *ignore.Matcher {
	return ignore.NewMatcher(ignore.MatcherOptions{
		Roots:            cfg.Roots,
		Extensions:       cfg.Extensions,
		ExcludeDirs:      cfg.ExcludeDirs,
		CustomPatterns:   cfg.ExcludePatterns,
		RespectGitignore: cfg.RespectGitignore,
		MaxFileSizeBytes: cfg.MaxFileSize,
	})
}

// pipeline bundles the components that write to the index.
type pipeline struct {
	store   *index.Store
	matcher *ignore.Matcher
	tracker *status.Tracker
	writer  *indexer.Writer
}

func openPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	store, err := index.Open(cfg.IndexPath, logger)
	if err != nil {
		if errors.Is(err, index.ErrCorrupt) {
			return nil, fmt.Errorf("%w\nrun 'contentindex vacuum --fresh' to rebuild the index", err)
		}
		return nil, err
	}

	matcher := newMatcher(cfg)
	tracker := status.NewTracker(cfg.StatusPath, cfg.IndexPath, logger)
	tracker.SetTotals(func() (int64, int64) {
		meta := store.Stats()
		return meta.TotalFiles, meta.TotalChars
	})

	writer := indexer.New(
		store,
		matcher,
		scanner.New(cfg.Roots, matcher, logger),
		tracker,
		logger,
		indexer.Options{VacuumIOLimit: cfg.VacuumIOLimit},
	)

	return &pipeline{store: store, matcher: matcher, tracker: tracker, writer: writer}, nil
}

func (p *pipeline) Close() error {
	return p.store.Close()
}

func newVacuumCmd(global *globalOptions) *cobra.Command {
	var fresh bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "vacuum",
		Short: "Bring the index in line with the files on disk and exit",
		Long: `Walk every root once: index new and changed files, drop documents whose
files are gone and leave unchanged files alone.

With --fresh the index is deleted first and rebuilt from scratch. Use it
when serve reports a corrupt index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVacuum(cmd, global, fresh, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "Delete the index before rebuilding it")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	return cmd
}

func runVacuum(cmd *cobra.Command, global *globalOptions, fresh, jsonOutput bool) error {
	cfg, err := loadConfig(cmd.Flags(), global, nil)
	if err != nil {
		return err
	}
	logger, cleanup := setupLogger(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	defer cleanup()

	lock, err := acquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	if fresh {
		logger.Info("removing index for a fresh rebuild", "path", cfg.IndexPath)
		if err := os.RemoveAll(cfg.IndexPath); err != nil {
			return fmt.Errorf("removing index %s: %w", cfg.IndexPath, err)
		}
	}

	p, err := openPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result indexer.VacuumResult
	g, gctx := errgroup.WithContext(ctx)
	writerCtx, stopWriter := context.WithCancel(gctx)
	g.Go(func() error {
		return p.writer.Run(writerCtx)
	})
	g.Go(func() error {
		defer stopWriter()
		var err error
		result, err = p.writer.Vacuum(gctx)
		return err
	})
	err = g.Wait()

	if writeErr := p.tracker.Write(false); writeErr != nil {
		logger.Warn("status write failed", "error", writeErr)
	}
	if err != nil && !result.Interrupted {
		return fmt.Errorf("vacuum failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	fmt.Fprintln(out, tools.FormatVacuumResult(result))
	return nil
}
