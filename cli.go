package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/lexandro/contentindex/config"
	"github.com/lexandro/contentindex/index"
	"github.com/lexandro/contentindex/query"
	"github.com/lexandro/contentindex/register"
	"github.com/lexandro/contentindex/status"
)

const remoteQueryTimeout = 10 * time.Second

func newStatusCmd(global *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the indexer status file",
		Long: `Print the status file written by serve and vacuum: whether the indexer
is running, its counters, the last vacuum and the index totals.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), global, nil)
			if err != nil {
				return err
			}
			snapshot, err := status.Read(cfg.StatusPath)
			if errors.Is(err, status.ErrNoStatus) {
				return fmt.Errorf("no status file at %s\nrun 'contentindex serve' or 'contentindex vacuum' first", cfg.StatusPath)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(snapshot)
			}
			renderStatus(out, snapshot, cfg.HeartbeatEvery(), time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// stateOf describes the indexer state. A running indexer whose status file
// has not been refreshed for three heartbeats is reported as stale.
func stateOf(snapshot status.Snapshot, heartbeat time.Duration, now time.Time) string {
	switch {
	case !snapshot.Running:
		return "stopped"
	case heartbeat > 0 && now.Sub(snapshot.Updated) > 3*heartbeat:
		return "stale (no heartbeat since " + humanize.Time(snapshot.Updated) + ")"
	case snapshot.VacuumRunning:
		return "running (vacuum in progress)"
	default:
		return "running"
	}
}

func renderStatus(w io.Writer, snapshot status.Snapshot, heartbeat time.Duration, now time.Time) {
	lastVacuum := "never"
	if snapshot.LastVacuum != nil {
		lastVacuum = humanize.Time(*snapshot.LastVacuum)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Field", "Value"})
	table.SetAutoWrapText(false)
	table.AppendBulk([][]string{
		{"State", stateOf(snapshot, heartbeat, now)},
		{"PID", strconv.Itoa(snapshot.PID)},
		{"Instance", snapshot.InstanceID},
		{"Started", humanize.Time(snapshot.Started)},
		{"Updated", humanize.Time(snapshot.Updated)},
		{"Index", snapshot.IndexPath},
		{"Documents", humanize.Comma(snapshot.TotalFiles)},
		{"Characters", humanize.Comma(snapshot.TotalCharacters)},
		{"Last vacuum", lastVacuum},
		{"Indexed", humanize.Comma(snapshot.FilesIndexed)},
		{"Updated files", humanize.Comma(snapshot.FilesUpdated)},
		{"Deleted", humanize.Comma(snapshot.FilesDeleted)},
		{"Skipped", humanize.Comma(snapshot.FilesSkipped)},
		{"Suppressed events", humanize.Comma(snapshot.Suppressed)},
		{"Errors", humanize.Comma(snapshot.Errors)},
		{"Resyncs", humanize.Comma(snapshot.Resyncs)},
	})
	table.Render()
}

func newSearchCmd(global *globalOptions) *cobra.Command {
	var docType string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one search against the index",
		Long: `Search the index and print the ranked results. When a serve process holds
the index, the query goes through its HTTP API instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Flags(), global, nil)
			if err != nil {
				return err
			}
			q := strings.Join(args, " ")

			response, err := searchLocal(cfg, q, docType, limit)
			if errors.Is(err, errLocked) {
				response, err = searchRemote(cmd.Context(), cfg.HTTPAddr, q, docType, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(response)
			}
			renderSearch(out, response)
			return nil
		},
	}

	cmd.Flags().StringVarP(&docType, "type", "t", "", "Restrict results to one file type (md, txt, py, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", query.DefaultSearchLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// searchLocal opens the index directly. It returns errLocked when another
// process owns the data directory.
func searchLocal(cfg *config.Config, q, docType string, limit int) (query.SearchResponse, error) {
	lock, err := acquireLock(cfg)
	if err != nil {
		return query.SearchResponse{}, err
	}
	defer lock.Unlock()

	logger, cleanup := setupLogger(cfg.LogLevel, cfg.LogFile, cfg.LogFormat)
	defer cleanup()

	var store *index.Store
	if _, err := os.Stat(cfg.IndexPath); err == nil {
		store, err = index.Open(cfg.IndexPath, logger)
		if err != nil {
			return query.SearchResponse{}, err
		}
		defer store.Close()
	}

	service := query.NewService(store, query.Options{Roots: cfg.Roots, IndexPath: cfg.IndexPath}, logger)
	return service.Search(q, docType, limit)
}

func searchRemote(ctx context.Context, addr, q, docType string, limit int) (query.SearchResponse, error) {
	if addr == "" {
		return query.SearchResponse{}, fmt.Errorf("%w and its HTTP API is disabled", errLocked)
	}

	params := url.Values{"q": {q}, "limit": {strconv.Itoa(limit)}}
	if docType != "" {
		params.Set("type", docType)
	}
	endpoint := (&url.URL{Scheme: "http", Host: addr, Path: "/api/search", RawQuery: params.Encode()}).String()

	ctx, cancel := context.WithTimeout(ctx, remoteQueryTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return query.SearchResponse{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return query.SearchResponse{}, fmt.Errorf("querying %s: %w", addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
			Hint  string `json:"hint"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
			return query.SearchResponse{}, fmt.Errorf("querying %s: %s", addr, resp.Status)
		}
		if body.Hint != "" {
			return query.SearchResponse{}, fmt.Errorf("%s (%s)", body.Error, body.Hint)
		}
		return query.SearchResponse{}, errors.New(body.Error)
	}

	var response query.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return query.SearchResponse{}, fmt.Errorf("decoding response from %s: %w", addr, err)
	}
	return response, nil
}

func renderSearch(w io.Writer, response query.SearchResponse) {
	if response.Count == 0 {
		fmt.Fprintf(w, "No matches found for %q.\n", response.Query)
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Score", "Type", "Modified", "Path"})
	table.SetAutoWrapText(false)
	for i, result := range response.Results {
		table.Append([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(result.Score, 'f', 3, 64),
			result.Type,
			result.Modified,
			result.Path,
		})
	}
	table.Render()

	for i, result := range response.Results {
		fmt.Fprintf(w, "\n%d. %s\n   %s\n", i+1, result.Name, result.Snippet)
	}
}

func newRegisterCmd(global *globalOptions) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "register project|user [directory] [-- serve flags]",
		Short: "Add contentindex as an MCP server to a client config",
		Long: `Register this binary as an MCP server.

  register project [directory]   writes <directory>/.mcp.json (default: .)
  register user                  writes ~/.claude.json

Arguments after -- are forwarded to 'contentindex serve --mcp'. The
--config file and --root directories given here are passed along too.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			positional, forwarded := register.SplitArgs(args, cmd.ArgsLenAtDash())
			if len(positional) == 0 || len(positional) > 2 {
				return errors.New("expected a scope (project or user) and an optional directory")
			}

			opts := register.Options{
				Scope:      positional[0],
				ServerName: name,
				ConfigFile: global.configPath,
			}
			if len(positional) == 2 {
				opts.Directory = positional[1]
			}
			serverArgs, err := registeredArgs(global.roots, forwarded)
			if err != nil {
				return err
			}
			opts.ServerArgs = serverArgs

			configPath, err := register.Register(opts, config.EnvConfigPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered MCP server in %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Server name in the client config (default: derived from the binary name)")

	return cmd
}

// registeredArgs builds the serve arguments stored in the client config.
// Roots are made absolute since the client starts the server from its own
// working directory.
func registeredArgs(roots, forwarded []string) ([]string, error) {
	var args []string
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", root, err)
		}
		args = append(args, "--root", abs)
	}
	return append(args, forwarded...), nil
}
