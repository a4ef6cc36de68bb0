package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/lexandro/contentindex/config"
	"github.com/lexandro/contentindex/server"
)

// globalOptions are the flags shared by every subcommand. Flags only
// override the config file when set explicitly.
type globalOptions struct {
	configPath string
	roots      []string
	dataDir    string
	logLevel   string
	logFile    string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	global := &globalOptions{}
	serve := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "contentindex",
		Short: "Watch document folders and keep a full-text index current",
		Long: `contentindex watches one or more folders of notes and documents, keeps a
persistent full-text index in step with the files on disk and answers
search, question, recent-file and document queries over HTTP and MCP.

Running contentindex without a subcommand is the same as 'contentindex serve'.`,
		Version:      server.Version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, serve)
		},
	}
	cmd.SetVersionTemplate("contentindex version {{.Version}}\n")

	addGlobalFlags(cmd.PersistentFlags(), global)
	addServeFlags(cmd.Flags(), serve)

	cmd.AddCommand(newServeCmd(global))
	cmd.AddCommand(newVacuumCmd(global))
	cmd.AddCommand(newStatusCmd(global))
	cmd.AddCommand(newSearchCmd(global))
	cmd.AddCommand(newRegisterCmd(global))

	return cmd
}

func addGlobalFlags(flags *pflag.FlagSet, global *globalOptions) {
	flags.StringVarP(&global.configPath, "config", "c", "", "Config file (.yaml, .yml or .toml); defaults to $"+config.EnvConfigPath)
	flags.StringSliceVar(&global.roots, "root", nil, "Root directory to index (repeatable, default: current directory)")
	flags.StringVar(&global.dataDir, "data-dir", "", "Directory for the index, status and lock files (default: ~/.contentindex)")
	flags.StringVar(&global.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.StringVar(&global.logFile, "log-file", "", "Log file path (default: stderr)")
	flags.StringVar(&global.logFormat, "log-format", "", "Log format: text|json")
}

// loadConfig reads the config file, applies explicitly set flags and
// normalizes the result.
func loadConfig(flags *pflag.FlagSet, global *globalOptions, apply func(*config.Config)) (*config.Config, error) {
	path := global.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if flags.Changed("root") {
		cfg.Roots = append([]string(nil), global.roots...)
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = global.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = global.logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = global.logFile
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = global.logFormat
	}
	if apply != nil {
		apply(cfg)
	}

	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogger creates an slog.Logger writing to stderr or a file.
// It never writes to stdout, which carries MCP stdio traffic.
func setupLogger(level, logFile, format string) (*slog.Logger, func()) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var writer io.Writer = os.Stderr
	cleanup := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v, falling back to stderr\n", logFile, err)
		} else {
			writer = f
			cleanup = func() { f.Close() }
		}
	}

	options := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(writer, options)
	} else {
		handler = slog.NewTextHandler(writer, options)
	}
	return slog.New(handler), cleanup
}
