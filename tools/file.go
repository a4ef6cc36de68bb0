package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/query"
)

// FileArgs defines the input parameters for the content_file tool.
type FileArgs struct {
	Path string `json:"path" jsonschema:"Absolute path of an indexed document, or a path relative to one of the indexed roots"`
}

// FileHandler holds the dependencies for the file tool.
type FileHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

// Handle processes a content_file request. The content is served from the
// index, not from disk.
func (h *FileHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FileArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	file, err := h.Service.File(args.Path)
	if err != nil {
		h.Logger.Info("content_file failed", "path", args.Path, "error", err)
		return errorResult(err), nil, nil
	}

	h.Logger.Info("content_file", "path", file.Path, "elapsed", time.Since(start))
	return textResult(FormatFileContent(file)), nil, nil
}

// FilesArgs defines the input parameters for the content_files tool.
type FilesArgs struct {
	Pattern string `json:"pattern" jsonschema:"Glob pattern matched against the absolute path, the path relative to its root and the file name (e.g. **/*.md or journal/2024-*)"`
	Limit   int    `json:"limit,omitempty" jsonschema:"Maximum number of paths to return (default 50)"`
}

// FilesHandler holds the dependencies for the files tool.
type FilesHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

// Handle processes a content_files request.
func (h *FilesHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FilesArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	response, err := h.Service.Files(args.Pattern, args.Limit)
	if err != nil {
		h.Logger.Warn("content_files failed", "pattern", args.Pattern, "error", err)
		return errorResult(err), nil, nil
	}

	h.Logger.Info("content_files",
		"pattern", args.Pattern,
		"results", response.Count,
		"total", response.Total,
		"elapsed", time.Since(start),
	)

	return textResult(FormatFiles(response)), nil, nil
}
