package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/contentindex/doctype"
	"github.com/lexandro/contentindex/index"
	"github.com/lexandro/contentindex/indexer"
	"github.com/lexandro/contentindex/query"
)

const testRoot = "/data/notes"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, vacuum VacuumFunc) (*Server, *index.Store) {
	t.Helper()
	store, err := index.Open("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	service := query.NewService(store, query.Options{Roots: []string{testRoot}}, testLogger())
	return New(service, vacuum, testLogger()), store
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
	require.NoError(t, err)
	return path
}

func do(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	recorder := httptest.NewRecorder()
	s.Handler().ServeHTTP(recorder, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if recorder.Body.Len() > 0 && recorder.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	}
	return recorder, body
}

func Test_Server_Search(t *testing.T) {
	s, store := newTestServer(t, nil)
	addDoc(t, store, "notes.md", "pattern theory basics")

	recorder, body := do(t, s, http.MethodGet, "/api/search?q=pattern")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pattern", body["query"])
	assert.Equal(t, float64(1), body["count"])

	results := body["results"].([]any)
	first := results[0].(map[string]any)
	assert.Equal(t, "notes.md", first["name"])
	assert.Equal(t, "md", first["type"])
	assert.Contains(t, first["snippet"], "**pattern**")
	assert.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func Test_Server_SearchMissingQuery(t *testing.T) {
	s, _ := newTestServer(t, nil)

	recorder, body := do(t, s, http.MethodGet, "/api/search")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "query required", body["error"])
	assert.Contains(t, body["hint"], "?q=")
}

func Test_Server_InvalidLimit(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, target := range []string{"/api/search?q=x&limit=abc", "/api/recent?limit=-1", "/api/files?pattern=*&limit=0"} {
		recorder, body := do(t, s, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, target)
		assert.Contains(t, body["error"], "invalid limit", target)
	}
}

func Test_Server_Ask(t *testing.T) {
	s, store := newTestServer(t, nil)
	addDoc(t, store, "immunity.md", "manipulation immunity is a practiced skill")

	recorder, body := do(t, s, http.MethodGet, "/api/ask?q=What+do+I+know+about+manipulation+immunity")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, []any{"manipulation", "immunity"}, body["search_terms"])
	answers := body["answers"].([]any)
	require.Len(t, answers, 1)
	assert.Equal(t, "immunity.md", answers[0].(map[string]any)["source"])
}

func Test_Server_Recent(t *testing.T) {
	s, store := newTestServer(t, nil)
	addDoc(t, store, "a.md", "alpha")

	recorder, body := do(t, s, http.MethodGet, "/api/recent?limit=5")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), body["count"])
}

func Test_Server_File(t *testing.T) {
	s, store := newTestServer(t, nil)
	path := addDoc(t, store, "notes.md", "pattern theory advanced concepts")

	recorder, body := do(t, s, http.MethodGet, "/api/file?path="+path)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pattern theory advanced concepts", body["content"])

	recorder, body = do(t, s, http.MethodGet, "/api/file?path=/data/notes/missing.md")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "file not found in index", body["error"])

	recorder, _ = do(t, s, http.MethodGet, "/api/file")
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func Test_Server_Files(t *testing.T) {
	s, store := newTestServer(t, nil)
	addDoc(t, store, "a.md", "alpha")
	addDoc(t, store, "b.py", "beta")

	recorder, body := do(t, s, http.MethodGet, "/api/files?pattern=*.md")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, "*.md", body["pattern"])
}

func Test_Server_StatsAndHealth(t *testing.T) {
	s, store := newTestServer(t, nil)
	addDoc(t, store, "a.md", "alpha")

	recorder, body := do(t, s, http.MethodGet, "/api/stats")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, float64(1), body["total_files"])
	assert.Equal(t, map[string]any{"md": float64(1)}, body["files_by_type"])

	recorder, body = do(t, s, http.MethodGet, "/api/health")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["database_exists"])
}

func Test_Server_Unavailable(t *testing.T) {
	service := query.NewService(nil, query.Options{IndexPath: "/nowhere/index.bleve"}, testLogger())
	s := New(service, nil, testLogger())

	recorder, body := do(t, s, http.MethodGet, "/api/search?q=x")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "database not found", body["error"])

	recorder, body = do(t, s, http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "no database", body["status"])
	assert.Equal(t, false, body["database_exists"])
}

func Test_Server_Vacuum(t *testing.T) {
	calls := 0
	s, _ := newTestServer(t, func(ctx context.Context) (indexer.VacuumResult, error) {
		calls++
		return indexer.VacuumResult{Seen: 3, Indexed: 2, Unchanged: 1}, nil
	})

	recorder, body := do(t, s, http.MethodPost, "/api/vacuum")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, calls)
	assert.Equal(t, float64(3), body["seen"])
	assert.Equal(t, float64(2), body["indexed"])

	recorder, _ = do(t, s, http.MethodGet, "/api/vacuum")
	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	assert.Equal(t, 1, calls)
}

func Test_Server_VacuumFailure(t *testing.T) {
	s, _ := newTestServer(t, func(ctx context.Context) (indexer.VacuumResult, error) {
		return indexer.VacuumResult{}, errors.New("store closed")
	})

	recorder, body := do(t, s, http.MethodPost, "/api/vacuum")
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "store closed", body["error"])
}

func Test_Server_VacuumNotRegistered(t *testing.T) {
	s, _ := newTestServer(t, nil)

	recorder, _ := do(t, s, http.MethodPost, "/api/vacuum")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func Test_Server_Preflight(t *testing.T) {
	s, _ := newTestServer(t, nil)

	recorder, _ := do(t, s, http.MethodOptions, "/api/search")
	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func Test_Server_ServeStopsOnCancel(t *testing.T) {
	s, store := newTestServer(t, nil)
	addDoc(t, store, "a.md", "alpha")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()

	response, err := http.Get("http://" + listener.Addr().String() + "/api/health")
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
