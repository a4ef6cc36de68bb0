package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/lexandro/contentindex/config"
	"github.com/lexandro/contentindex/httpapi"
	"github.com/lexandro/contentindex/query"
	"github.com/lexandro/contentindex/server"
	"github.com/lexandro/contentindex/tools"
	"github.com/lexandro/contentindex/watcher"
)

// serveOptions are the serve flags; each overrides its config key when set.
type serveOptions struct {
	httpAddr       string
	mcp            bool
	debounce       string
	vacuumInterval string
	vacuumIOLimit  int64
	maxFileSize    int64
	excludes       []string
}

func addServeFlags(flags *pflag.FlagSet, o *serveOptions) {
	flags.StringVar(&o.httpAddr, "http-addr", config.DefaultHTTPAddr, "HTTP API listen address (empty disables the API)")
	flags.BoolVar(&o.mcp, "mcp", false, "Serve MCP tools on stdio")
	flags.StringVar(&o.debounce, "debounce", "1s", "Per-file quiet window for change events")
	flags.StringVar(&o.vacuumInterval, "vacuum-interval", "1h", "Interval between scheduled vacuums (0 disables)")
	flags.Int64Var(&o.vacuumIOLimit, "vacuum-io-limit", 0, "Vacuum read limit in bytes per second (0 means unlimited)")
	flags.Int64Var(&o.maxFileSize, "max-file-size", 0, "Maximum file size in bytes")
	flags.StringSliceVar(&o.excludes, "exclude", nil, "Extra exclude pattern (repeatable)")
}

func (o *serveOptions) apply(flags *pflag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		if flags.Changed("http-addr") {
			cfg.HTTPAddr = o.httpAddr
		}
		if flags.Changed("mcp") {
			cfg.MCP = o.mcp
		}
		if flags.Changed("debounce") {
			cfg.Debounce = o.debounce
		}
		if flags.Changed("vacuum-interval") {
			cfg.VacuumInterval = o.vacuumInterval
		}
		if flags.Changed("vacuum-io-limit") {
			cfg.VacuumIOLimit = o.vacuumIOLimit
		}
		if flags.Changed("max-file-size") {
			cfg.MaxFileSize = o.maxFileSize
		}
		cfg.ExcludePatterns = append(cfg.ExcludePatterns, o.excludes...)
	}
}

func newServeCmd(global *globalOptions) *cobra.Command {
	serve := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index, watch and answer queries until interrupted",
		Long: `Take the data directory lock, open the index, run a vacuum, then keep the
index current from filesystem events while serving the HTTP API and, with
--mcp, the MCP tools on stdio. A vacuum also runs on a schedule and
whenever the watcher may have missed events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, serve)
		},
	}
	addServeFlags(cmd.Flags(), serve)

	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, serve *serveOptions) error {
	cfg, err := loadConfig(cmd.Flags(), global, serve.apply(cmd.Flags()))
	if err != nil {
		return err
	}
	if cfg.HTTPAddr == "" && !cfg.MCP {
		return errors.New("nothing to serve: set http_addr or enable mcp")
	}

	logger, cleanup := setupLogger(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	defer cleanup()

	logger.Info("starting contentindex",
		"version", server.Version,
		"roots", cfg.Roots,
		"index", cfg.IndexPath,
		"http", cfg.HTTPAddr,
		"mcp", cfg.MCP,
	)
	startTime := time.Now()

	lock, err := acquireLock(cfg)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	p, err := openPipeline(cfg, logger)
	if err != nil {
		logger.Error("failed to open index", "path", cfg.IndexPath, "error", err)
		return err
	}
	defer p.Close()

	// The watcher registers its directories before the first vacuum starts,
	// so no file created during the walk goes unseen.
	fileWatcher, err := watcher.NewWatcher(cfg.Roots, p.matcher, logger)
	if err != nil {
		logger.Warn("failed to start file watcher, continuing with scheduled vacuums only", "error", err)
	} else {
		defer fileWatcher.Close()
		logger.Info("watching", "directories", fileWatcher.WatchedDirs())
	}

	service := query.NewService(p.store, query.Options{
		Roots:     cfg.Roots,
		IndexPath: cfg.IndexPath,
		CacheSize: cfg.CacheSize,
	}, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.writer.Run(gctx) })
	g.Go(func() error { return p.writer.RunScheduler(gctx, cfg.VacuumEvery()) })
	g.Go(func() error { return p.tracker.RunHeartbeat(gctx, cfg.HeartbeatEvery()) })
	p.writer.RequestVacuum()

	if fileWatcher != nil {
		dispatcher := watcher.NewDispatcher(p.matcher, p.writer, p.tracker, cfg.DebounceWindow(), logger)
		dispatcher.OnIgnoreChange = func() {
			p.matcher.Reload()
			p.writer.RequestVacuum()
		}
		g.Go(func() error { return fileWatcher.Run(gctx) })
		g.Go(func() error { return dispatcher.Run(gctx, fileWatcher.Events()) })
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-fileWatcher.Resync():
					logger.Warn("watch events may have been lost, scheduling a vacuum")
					p.tracker.Resync()
					p.writer.RequestVacuum()
				}
			}
		})
	}

	if cfg.HTTPAddr != "" {
		api := httpapi.New(service, p.writer.Vacuum, logger)
		g.Go(func() error { return api.Run(gctx, cfg.HTTPAddr) })
	}

	if cfg.MCP {
		mcpServer := server.Setup(newToolHandlers(service, p, cfg, startTime, logger))
		g.Go(func() error {
			logger.Info("MCP server starting on stdio")
			err := mcpServer.Run(gctx, &mcp.StdioTransport{})
			if gctx.Err() != nil {
				return nil
			}
			if err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			// The client closed stdin: shut down the whole process.
			logger.Info("MCP client disconnected")
			stop()
			return nil
		})
	}

	err = g.Wait()
	logger.Info("contentindex stopped", "uptime", time.Since(startTime).Round(time.Second))
	return err
}

func newToolHandlers(service *query.Service, p *pipeline, cfg *config.Config, startTime time.Time, logger *slog.Logger) server.Handlers {
	return server.Handlers{
		Search: &tools.SearchHandler{Service: service, Logger: logger},
		Ask:    &tools.AskHandler{Service: service, Logger: logger},
		Recent: &tools.RecentHandler{Service: service, Logger: logger},
		File:   &tools.FileHandler{Service: service, Logger: logger},
		Files:  &tools.FilesHandler{Service: service, Logger: logger},
		Stats: &tools.StatsHandler{
			Service:   service,
			Tracker:   p.tracker,
			StartTime: startTime,
			Roots:     cfg.Roots,
			Logger:    logger,
		},
		Health: &tools.HealthHandler{Service: service, Logger: logger},
		Vacuum: &tools.VacuumHandler{DoVacuum: p.writer.Vacuum, Logger: logger},
	}
}
