package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/tools"
)

// Version is reported to MCP clients and by the CLI.
const Version = "0.1.0"

// Handlers bundles the tool handlers registered on the server.
type Handlers struct {
	Search *tools.SearchHandler
	Ask    *tools.AskHandler
	Recent *tools.RecentHandler
	File   *tools.FileHandler
	Files  *tools.FilesHandler
	Stats  *tools.StatsHandler
	Health *tools.HealthHandler
	// Vacuum is nil when this process does not own the index writer.
	Vacuum *tools.VacuumHandler
}

// Setup creates and configures the MCP server with all tool registrations.
func Setup(handlers Handlers) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "contentindex",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server provides full-text search over a personal collection of notes and documents (markdown, text, source files, PDFs, mail). The index is kept current by a filesystem watcher, so results reflect the files on disk within seconds.

Prefer these tools when the user asks about their own notes or documents:
- Use content_ask for natural language questions ("what do I know about X?")
- Use content_search for keyword search; every term must match
- Use content_file to read a document from the index, by absolute path or path relative to a root
- Use content_files to find documents by glob pattern
- Use content_recent to see what changed lately`,
		},
	)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "content_search",
		Description: `Ranked full-text search over indexed documents. Results are ordered by relevance and include a snippet with matches wrapped in **bold**.

Every term must appear in a result. Matching is case-insensitive and stemmed ("notes" matches "note").

Filtering:
  - type: restrict to one file type (md, txt, py, pdf, eml, ...)`,
	}, handlers.Search.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "content_ask",
		Description: `Answer a natural language question from the indexed documents. Question words and stop words are removed and the remaining terms are searched with any-term matching. Returns the most relevant passages with matches wrapped in >>> <<<.`,
	}, handlers.Ask.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "content_recent",
		Description: "List the most recently modified indexed documents, newest first, with a short preview.",
	}, handlers.Recent.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "content_file",
		Description: `Read an indexed document's extracted text from the index. Returns numbered lines. Relative paths are resolved against the indexed roots.`,
	}, handlers.File.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "content_files",
		Description: `Find indexed documents by glob pattern. The pattern is matched against the absolute path, the path relative to its root and the file name.

Pattern examples:
  - "*.md" - all markdown files
  - "journal/**" - everything under journal/
  - "**/2024-*.md" - notes named by date`,
	}, handlers.Files.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "content_stats",
		Description: "Show index statistics: document count, characters, file types, last index time, indexer counters, memory usage and uptime.",
	}, handlers.Stats.Handle)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "content_health",
		Description: "Report whether an index is available.",
	}, handlers.Health.Handle)

	if handlers.Vacuum != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "content_vacuum",
			Description: "Walk every root and bring the index in line with the files on disk. New and changed files are indexed, removed files are dropped. Unchanged files are not rewritten.",
		}, handlers.Vacuum.Handle)
	}

	return mcpServer
}
