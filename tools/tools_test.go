package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lexandro/contentindex/doctype"
	"github.com/lexandro/contentindex/index"
	"github.com/lexandro/contentindex/indexer"
	"github.com/lexandro/contentindex/query"
	"github.com/lexandro/contentindex/status"
)

const testRoot = "/data/notes"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*query.Service, *index.Store) {
	t.Helper()
	store, err := index.Open("", testLogger())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return query.NewService(store, query.Options{Roots: []string{testRoot}}, testLogger()), store
}

func addDoc(t *testing.T, store *index.Store, rel, content string) string {
	t.Helper()
	path := filepath.Join(testRoot, filepath.FromSlash(rel))
	_, err := store.Upsert(index.Document{
		Path:     path,
		Name:     filepath.Base(path),
		Type:     doctype.FromPath(path),
		Content:  content,
		Preview:  content,
		Modified: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Hash:     "h-" + content,
		Chars:    int64(len([]rune(content))),
	})
	if err != nil {
		t.Fatalf("failed to index %s: %v", rel, err)
	}
	return path
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("expected content in tool result")
	}
	return result.Content[0].(*mcp.TextContent).Text
}

// --- content_search ---

func Test_SearchHandler_EmptyQuery(t *testing.T) {
	service, _ := newTestService(t)
	h := &SearchHandler{Service: service, Logger: testLogger()}

	result, _, err := h.Handle(context.Background(), nil, SearchArgs{Query: ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true for empty query")
	}

	text := resultText(t, result)
	if !strings.Contains(text, "query required") || !strings.Contains(text, "?q=") {
		t.Errorf("expected error with hint, got: %s", text)
	}
}

func Test_SearchHandler_Success(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "notes.md", "pattern theory basics")
	addDoc(t, store, "list.txt", "milk and eggs")
	h := &SearchHandler{Service: service, Logger: testLogger()}

	result, _, err := h.Handle(context.Background(), nil, SearchArgs{Query: "pattern"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success, got: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Found 1 documents") {
		t.Errorf("expected one document, got:\n%s", text)
	}
	if !strings.Contains(text, "**pattern** theory basics") {
		t.Errorf("expected highlighted snippet, got:\n%s", text)
	}
	if strings.Contains(text, "list.txt") {
		t.Errorf("unexpected non-matching document in output:\n%s", text)
	}
}

func Test_SearchHandler_UnknownType(t *testing.T) {
	service, _ := newTestService(t)
	h := &SearchHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "x", Type: "docx"})
	if !result.IsError {
		t.Fatal("expected IsError=true for unknown type")
	}
	if text := resultText(t, result); !strings.Contains(text, "valid types") {
		t.Errorf("expected list of valid types, got: %s", text)
	}
}

func Test_SearchHandler_NoMatches(t *testing.T) {
	service, _ := newTestService(t)
	h := &SearchHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "nothing"})
	if result.IsError {
		t.Fatal("no matches is not an error")
	}
	if text := resultText(t, result); !strings.Contains(text, "No matches found") {
		t.Errorf("expected no matches message, got: %s", text)
	}
}

func Test_SearchHandler_Unavailable(t *testing.T) {
	h := &SearchHandler{Service: query.NewService(nil, query.Options{}, testLogger()), Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, SearchArgs{Query: "x"})
	if !result.IsError {
		t.Fatal("expected IsError=true without an index")
	}
	if text := resultText(t, result); !strings.Contains(text, "database not found") {
		t.Errorf("expected unavailable message, got: %s", text)
	}
}

// --- content_ask ---

func Test_AskHandler_Success(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "immunity.md", "manipulation immunity is a practiced skill")
	h := &AskHandler{Service: service, Logger: testLogger()}

	result, _, err := h.Handle(context.Background(), nil, AskArgs{Question: "What do I know about manipulation?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "1. immunity.md") {
		t.Errorf("expected numbered source, got:\n%s", text)
	}
	if !strings.Contains(text, ">>>manipulation<<<") {
		t.Errorf("expected marked passage, got:\n%s", text)
	}
	if !strings.Contains(text, "terms: manipulation?") {
		t.Errorf("expected search terms, got:\n%s", text)
	}
}

func Test_AskHandler_OnlyStopWords(t *testing.T) {
	service, _ := newTestService(t)
	h := &AskHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, AskArgs{Question: "what is it"})
	if result.IsError {
		t.Fatal("a question without terms is not an error")
	}
	if text := resultText(t, result); !strings.Contains(text, "no searchable terms") {
		t.Errorf("expected no terms message, got: %s", text)
	}
}

// --- content_recent ---

func Test_RecentHandler_Success(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "a.md", "first\nnote")
	h := &RecentHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, RecentArgs{})
	text := resultText(t, result)
	if !strings.Contains(text, "a.md") || !strings.Contains(text, "first note") {
		t.Errorf("expected file with collapsed preview, got:\n%s", text)
	}
}

func Test_RecentHandler_Empty(t *testing.T) {
	service, _ := newTestService(t)
	h := &RecentHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, RecentArgs{})
	if text := resultText(t, result); text != "No documents indexed." {
		t.Errorf("unexpected output: %s", text)
	}
}

// --- content_file ---

func Test_FileHandler_EmptyPath(t *testing.T) {
	service, _ := newTestService(t)
	h := &FileHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, FileArgs{})
	if !result.IsError {
		t.Fatal("expected IsError=true for empty path")
	}
	if text := resultText(t, result); !strings.Contains(text, "path required") {
		t.Errorf("unexpected output: %s", text)
	}
}

func Test_FileHandler_NotFound(t *testing.T) {
	service, _ := newTestService(t)
	h := &FileHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, FileArgs{Path: "/data/notes/missing.md"})
	if !result.IsError {
		t.Fatal("expected IsError=true for missing file")
	}
	if text := resultText(t, result); !strings.Contains(text, "file not found in index") {
		t.Errorf("unexpected output: %s", text)
	}
}

func Test_FileHandler_Success(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "notes.md", "# Title\n\nbody text")
	h := &FileHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, FileArgs{Path: "notes.md"})
	if result.IsError {
		t.Fatalf("expected success, got: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "1│ # Title") || !strings.Contains(text, "3│ body text") {
		t.Errorf("expected line-numbered content, got:\n%s", text)
	}
	if !strings.Contains(text, "3 lines") {
		t.Errorf("expected line count in header, got:\n%s", text)
	}
}

// --- content_files ---

func Test_FilesHandler_Success(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "a.md", "alpha")
	addDoc(t, store, "b.md", "beta")
	addDoc(t, store, "c.py", "gamma")
	h := &FilesHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, FilesArgs{Pattern: "*.md"})
	text := resultText(t, result)
	if !strings.Contains(text, "Found 2 files") {
		t.Errorf("expected two files, got:\n%s", text)
	}
	if strings.Contains(text, "c.py") {
		t.Errorf("unexpected python file in output:\n%s", text)
	}
}

func Test_FilesHandler_Truncated(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "a.md", "alpha")
	addDoc(t, store, "b.md", "beta")
	h := &FilesHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, FilesArgs{Pattern: "*.md", Limit: 1})
	if text := resultText(t, result); !strings.Contains(text, "Found 2 files (showing 1)") {
		t.Errorf("unexpected output: %s", text)
	}
}

func Test_FilesHandler_InvalidPattern(t *testing.T) {
	service, _ := newTestService(t)
	h := &FilesHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, FilesArgs{Pattern: "["})
	if !result.IsError {
		t.Fatal("expected IsError=true for invalid pattern")
	}
}

// --- content_stats / content_health ---

func Test_StatsHandler_Success(t *testing.T) {
	service, store := newTestService(t)
	addDoc(t, store, "a.md", "alpha")
	addDoc(t, store, "b.md", "beta")
	addDoc(t, store, "c.py", "gamma")

	tracker := status.NewTracker("", "", testLogger())
	tracker.FileIndexed()
	h := &StatsHandler{
		Service:   service,
		Tracker:   tracker,
		StartTime: time.Now().Add(-90 * time.Second),
		Roots:     []string{testRoot},
		Logger:    testLogger(),
	}

	result, _, _ := h.Handle(context.Background(), nil, StatsArgs{})
	text := resultText(t, result)

	for _, want := range []string{
		"Roots: /data/notes",
		"Uptime: 1m30s",
		"Status: operational",
		"Indexed files: 3",
		"Total characters: 14",
		"md       2 files",
		"py       1 files",
		"indexed 1, updated 0",
		"last vacuum: never",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output:\n%s", want, text)
		}
	}
	if strings.Index(text, "md ") > strings.Index(text, "py ") {
		t.Errorf("expected types ordered by count:\n%s", text)
	}
}

func Test_StatsHandler_WithoutTracker(t *testing.T) {
	service, _ := newTestService(t)
	h := &StatsHandler{Service: service, StartTime: time.Now(), Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, StatsArgs{})
	text := resultText(t, result)
	if !strings.Contains(text, "Last indexed: never") {
		t.Errorf("expected never indexed, got:\n%s", text)
	}
	if strings.Contains(text, "Indexer:") {
		t.Errorf("unexpected indexer section:\n%s", text)
	}
}

func Test_HealthHandler(t *testing.T) {
	service, _ := newTestService(t)
	h := &HealthHandler{Service: service, Logger: testLogger()}

	result, _, _ := h.Handle(context.Background(), nil, HealthArgs{})
	if text := resultText(t, result); !strings.Contains(text, "status: healthy") {
		t.Errorf("unexpected output: %s", text)
	}

	missing := &HealthHandler{
		Service: query.NewService(nil, query.Options{IndexPath: "/nowhere/index.bleve"}, testLogger()),
		Logger:  testLogger(),
	}
	result, _, _ = missing.Handle(context.Background(), nil, HealthArgs{})
	if result.IsError {
		t.Fatal("health never reports a tool error")
	}
	text := resultText(t, result)
	if !strings.Contains(text, "status: no database") || !strings.Contains(text, "database_exists: false") {
		t.Errorf("unexpected output: %s", text)
	}
}

// --- content_vacuum ---

func Test_VacuumHandler_Success(t *testing.T) {
	h := &VacuumHandler{
		DoVacuum: func(ctx context.Context) (indexer.VacuumResult, error) {
			return indexer.VacuumResult{Seen: 42, Indexed: 40, Unchanged: 2, Duration: 1500 * time.Millisecond}, nil
		},
		Logger: testLogger(),
	}

	result, _, err := h.Handle(context.Background(), nil, VacuumArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success")
	}

	text := resultText(t, result)
	if !strings.Contains(text, "vacuum complete: 42 files seen (40 new") {
		t.Errorf("unexpected output: %s", text)
	}
	if !strings.Contains(text, "in 1.5s") {
		t.Errorf("expected duration, got: %s", text)
	}
}

func Test_VacuumHandler_Error(t *testing.T) {
	h := &VacuumHandler{
		DoVacuum: func(ctx context.Context) (indexer.VacuumResult, error) {
			return indexer.VacuumResult{}, errors.New("disk full")
		},
		Logger: testLogger(),
	}

	result, _, err := h.Handle(context.Background(), nil, VacuumArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected IsError=true")
	}
	if text := resultText(t, result); !strings.Contains(text, "disk full") {
		t.Errorf("unexpected output: %s", text)
	}
}

// --- formatting ---

func Test_FormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"Seconds_zero", 0, "0s"},
		{"Seconds_59", 59 * time.Second, "59s"},
		{"Minutes_5m30s", 5*time.Minute + 30*time.Second, "5m30s"},
		{"Hours_2h0m", 2 * time.Hour, "2h0m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func Test_FormatVacuumResult_Interrupted(t *testing.T) {
	got := FormatVacuumResult(indexer.VacuumResult{Seen: 3, Interrupted: true})
	if !strings.HasPrefix(got, "vacuum interrupted: 3 files seen") {
		t.Errorf("unexpected output: %s", got)
	}
}
