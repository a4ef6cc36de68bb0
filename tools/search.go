package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/query"
)

// SearchArgs defines the input parameters for the content_search tool.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"Search terms. Every term must appear in a matching document"`
	Type  string `json:"type,omitempty" jsonschema:"Optional file type filter (e.g. md, txt, py, pdf)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of results to return (default 20)"`
}

// SearchHandler holds the dependencies for the search tool.
type SearchHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

// Handle processes a content_search request.
func (h *SearchHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	response, err := h.Service.Search(args.Query, args.Type, args.Limit)
	if err != nil {
		h.Logger.Warn("content_search failed", "query", args.Query, "type", args.Type, "error", err)
		return errorResult(err), nil, nil
	}

	h.Logger.Info("content_search",
		"query", args.Query,
		"type", args.Type,
		"results", response.Count,
		"elapsed", time.Since(start),
	)

	return textResult(FormatSearchResults(response)), nil, nil
}

// AskArgs defines the input parameters for the content_ask tool.
type AskArgs struct {
	Question string `json:"question" jsonschema:"A natural language question (e.g. What do I know about pattern theory?)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum number of passages to return (default 5)"`
}

// AskHandler holds the dependencies for the ask tool.
type AskHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

// Handle processes a content_ask request.
func (h *AskHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args AskArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()

	response, err := h.Service.Ask(args.Question, args.Limit)
	if err != nil {
		h.Logger.Warn("content_ask failed", "question", args.Question, "error", err)
		return errorResult(err), nil, nil
	}

	h.Logger.Info("content_ask",
		"question", args.Question,
		"terms", response.SearchTerms,
		"answers", len(response.Answers),
		"elapsed", time.Since(start),
	)

	return textResult(FormatAnswers(response)), nil, nil
}

// RecentArgs defines the input parameters for the content_recent tool.
type RecentArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of documents to return (default 20)"`
}

// RecentHandler holds the dependencies for the recent tool.
type RecentHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

// Handle processes a content_recent request.
func (h *RecentHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args RecentArgs) (*mcp.CallToolResult, any, error) {
	response, err := h.Service.Recent(args.Limit)
	if err != nil {
		h.Logger.Warn("content_recent failed", "error", err)
		return errorResult(err), nil, nil
	}

	h.Logger.Info("content_recent", "files", response.Count)
	return textResult(FormatRecent(response)), nil, nil
}
