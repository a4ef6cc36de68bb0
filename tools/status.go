package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/query"
	"github.com/lexandro/contentindex/status"
)

// StatsArgs defines the input parameters for the content_stats tool (none required).
type StatsArgs struct{}

// StatsHandler holds the dependencies for the stats tool. Tracker may be nil
// when no indexer runs in this process.
type StatsHandler struct {
	Service   *query.Service
	Tracker   *status.Tracker
	StartTime time.Time
	Roots     []string
	Logger    *slog.Logger
}

// Handle processes a content_stats request.
func (h *StatsHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatsArgs) (*mcp.CallToolResult, any, error) {
	stats, err := h.Service.Stats()
	if err != nil {
		h.Logger.Warn("content_stats failed", "error", err)
		return errorResult(err), nil, nil
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	uptime := time.Since(h.StartTime)

	h.Logger.Info("content_stats",
		"files", stats.TotalFiles,
		"characters", stats.TotalCharacters,
		"memory", memStats.Alloc,
		"uptime", uptime,
	)

	var snapshot *status.Snapshot
	if h.Tracker != nil {
		s := h.Tracker.Snapshot(true)
		snapshot = &s
	}

	var builder strings.Builder
	builder.WriteString("=== contentindex Stats ===\n\n")
	if len(h.Roots) > 0 {
		builder.WriteString(fmt.Sprintf("Roots: %s\n", strings.Join(h.Roots, ", ")))
	}
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", formatDuration(uptime)))
	builder.WriteString(fmt.Sprintf("Memory usage: %s (heap: %s)\n",
		humanize.Bytes(memStats.Alloc),
		humanize.Bytes(memStats.HeapAlloc),
	))
	builder.WriteString(FormatStats(stats, snapshot))

	return textResult(builder.String()), nil, nil
}

// HealthArgs defines the input parameters for the content_health tool (none required).
type HealthArgs struct{}

// HealthHandler holds the dependencies for the health tool.
type HealthHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

// Handle processes a content_health request. It never reports a tool error;
// a missing index is part of the answer.
func (h *HealthHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args HealthArgs) (*mcp.CallToolResult, any, error) {
	health := h.Service.Health()
	h.Logger.Info("content_health", "status", health.Status)

	output := fmt.Sprintf("status: %s\ndatabase: %s\ndatabase_exists: %t\n",
		health.Status, health.Database, health.DatabaseExists)
	return textResult(output), nil, nil
}
