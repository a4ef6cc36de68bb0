package tools

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/indexer"
)

// VacuumArgs defines the input parameters for the content_vacuum tool.
type VacuumArgs struct{}

// VacuumFunc runs one full vacuum pass.
// It is provided by main.go to keep the tools package free of indexer wiring.
type VacuumFunc func(ctx context.Context) (indexer.VacuumResult, error)

// VacuumHandler holds the dependencies for the vacuum tool.
type VacuumHandler struct {
	DoVacuum VacuumFunc
	Logger   *slog.Logger
}

// Handle processes a content_vacuum request. It blocks until the pass
// finishes; a pass already in progress is waited for first.
func (h *VacuumHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args VacuumArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("content_vacuum started")

	result, err := h.DoVacuum(ctx)
	if err != nil {
		h.Logger.Error("content_vacuum failed", "error", err)
		return errorResult(err), nil, nil
	}

	h.Logger.Info("content_vacuum complete",
		"seen", result.Seen,
		"indexed", result.Indexed,
		"deleted", result.Deleted,
		"duration", result.Duration,
	)

	return textResult(FormatVacuumResult(result)), nil, nil
}
