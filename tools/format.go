package tools

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/indexer"
	"github.com/lexandro/contentindex/query"
	"github.com/lexandro/contentindex/status"
)

// FormatSearchResults formats ranked search hits as human-readable text.
func FormatSearchResults(response query.SearchResponse) string {
	if response.Count == 0 {
		return fmt.Sprintf("No matches found for %q.", response.Query)
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Found %d documents for %q:\n", response.Count, response.Query))

	for _, result := range response.Results {
		builder.WriteString(fmt.Sprintf("\n── %s ──\n", result.Path))
		builder.WriteString(fmt.Sprintf("  type: %s  modified: %s  score: %.3f\n", result.Type, result.Modified, result.Score))
		builder.WriteString(fmt.Sprintf("  %s\n", result.Snippet))
	}

	return builder.String()
}

// FormatAnswers formats the passages returned for a question.
func FormatAnswers(response query.AskResponse) string {
	if len(response.Answers) == 0 {
		if len(response.SearchTerms) == 0 {
			return fmt.Sprintf("No answers for %q (no searchable terms).", response.Question)
		}
		return fmt.Sprintf("No answers for %q (terms: %s).", response.Question, strings.Join(response.SearchTerms, ", "))
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d passages for %q", len(response.Answers), response.Question))
	if len(response.SearchTerms) > 0 {
		builder.WriteString(fmt.Sprintf(" (terms: %s)", strings.Join(response.SearchTerms, ", ")))
	}
	builder.WriteString(":\n")

	for i, answer := range response.Answers {
		builder.WriteString(fmt.Sprintf("\n%d. %s (relevance %.3f)\n", i+1, answer.Source, answer.Relevance))
		builder.WriteString(fmt.Sprintf("   %s\n", answer.Path))
		builder.WriteString(fmt.Sprintf("   %s\n", answer.Answer))
	}

	return builder.String()
}

// FormatRecent lists recently modified documents with their previews.
func FormatRecent(response query.RecentResponse) string {
	if response.Count == 0 {
		return "No documents indexed."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%d most recently modified documents:\n", response.Count))

	for _, file := range response.Files {
		builder.WriteString(fmt.Sprintf("\n── %s ── (%s, %s)\n", file.Path, file.Type, file.Modified))
		if preview := strings.Join(strings.Fields(file.Preview), " "); preview != "" {
			builder.WriteString(fmt.Sprintf("  %s\n", preview))
		}
	}

	return builder.String()
}

// FormatFileContent formats a document's content with line numbers.
// Output format: header line with path, type and line count, followed by numbered lines.
func FormatFileContent(file query.FileResponse) string {
	lines := strings.Split(file.Content, "\n")
	lineCount := len(lines)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("── %s (%s, %d lines, modified %s) ──\n", file.Path, file.Type, lineCount, file.Modified))

	width := len(fmt.Sprintf("%d", lineCount))

	for i, line := range lines {
		builder.WriteString(fmt.Sprintf("%*d│ %s\n", width, i+1, line))
	}

	return builder.String()
}

// FormatFiles lists indexed paths matching a pattern.
func FormatFiles(response query.FilesResponse) string {
	if response.Count == 0 {
		return "No files matched."
	}

	var builder strings.Builder
	if response.Total > response.Count {
		builder.WriteString(fmt.Sprintf("Found %d files (showing %d):\n\n", response.Total, response.Count))
	} else {
		builder.WriteString(fmt.Sprintf("Found %d files:\n\n", response.Count))
	}

	for _, path := range response.Files {
		builder.WriteString(path)
		builder.WriteString("\n")
	}

	return builder.String()
}

// FormatStats renders index totals, the per-type breakdown and, when a
// snapshot is given, the indexer's counters.
func FormatStats(stats query.StatsResponse, snapshot *status.Snapshot) string {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Status: %s\n", stats.Status))
	builder.WriteString(fmt.Sprintf("Last indexed: %s\n", stats.LastIndexed))
	builder.WriteString(fmt.Sprintf("Indexed files: %s\n", humanize.Comma(stats.TotalFiles)))
	builder.WriteString(fmt.Sprintf("Total characters: %s\n", humanize.Comma(stats.TotalCharacters)))

	if len(stats.FilesByType) > 0 {
		builder.WriteString("\nFile types:\n")

		type typeEntry struct {
			name  string
			count int64
		}
		entries := make([]typeEntry, 0, len(stats.FilesByType))
		for name, count := range stats.FilesByType {
			entries = append(entries, typeEntry{name, count})
		}
		slices.SortFunc(entries, func(a, b typeEntry) int {
			if c := cmp.Compare(b.count, a.count); c != 0 {
				return c
			}
			return cmp.Compare(a.name, b.name)
		})

		for _, entry := range entries {
			builder.WriteString(fmt.Sprintf("  %-8s %s files\n", entry.name, humanize.Comma(entry.count)))
		}
	}

	if snapshot != nil {
		builder.WriteString("\nIndexer:\n")
		builder.WriteString(fmt.Sprintf("  indexed %d, updated %d, deleted %d, skipped %d\n",
			snapshot.FilesIndexed, snapshot.FilesUpdated, snapshot.FilesDeleted, snapshot.FilesSkipped))
		builder.WriteString(fmt.Sprintf("  events suppressed %d, errors %d, resyncs %d\n",
			snapshot.Suppressed, snapshot.Errors, snapshot.Resyncs))
		switch {
		case snapshot.VacuumRunning:
			builder.WriteString("  vacuum: running\n")
		case snapshot.LastVacuum != nil:
			builder.WriteString(fmt.Sprintf("  last vacuum: %s\n", humanize.Time(*snapshot.LastVacuum)))
		default:
			builder.WriteString("  last vacuum: never\n")
		}
	}

	return builder.String()
}

// FormatVacuumResult summarizes one vacuum pass.
func FormatVacuumResult(result indexer.VacuumResult) string {
	state := "vacuum complete"
	if result.Interrupted {
		state = "vacuum interrupted"
	}
	return fmt.Sprintf("%s: %d files seen (%d new, %d updated, %d unchanged, %d deleted, %d skipped, %d errors) in %s",
		state,
		result.Seen,
		result.Indexed,
		result.Updated,
		result.Unchanged,
		result.Deleted,
		result.Skipped,
		result.Errors,
		result.Duration.Round(time.Millisecond),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	remainderSeconds := totalSeconds % 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, remainderSeconds)
	}
	hours := totalMinutes / 60
	remainderMinutes := totalMinutes % 60
	return fmt.Sprintf("%dh%dm", hours, remainderMinutes)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult turns an error into an IsError tool result, adding the hint of
// a query error when there is one.
func errorResult(err error) *mcp.CallToolResult {
	text := fmt.Sprintf("Error: %v", err)
	var queryErr *query.Error
	if errors.As(err, &queryErr) {
		text = "Error: " + queryErr.Message
		if queryErr.Hint != "" {
			text += " (" + queryErr.Hint + ")"
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
