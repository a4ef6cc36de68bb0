package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/contentindex/ignore"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func newTestScanner(roots ...string) *Scanner {
	matcher := ignore.NewMatcher(ignore.MatcherOptions{Roots: roots})
	return New(roots, matcher, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func collect(ctx context.Context, s *Scanner) []string {
	var paths []string
	for c := range s.Candidates(ctx) {
		paths = append(paths, c.Path)
	}
	return paths
}

func Test_Scanner_PrunesExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md":                   "a",
		"docs/b.txt":             "b",
		"node_modules/pkg/c.md":  "c",
		".git/HEAD.txt":          "d",
		"app/__pycache__/mod.py": "e",
		"app/main.py":            "f",
		"app/.venv/lib/site.py":  "g",
	})

	paths := collect(context.Background(), newTestScanner(root))

	assert.Equal(t, []string{
		filepath.Join(root, "a.md"),
		filepath.Join(root, "app", "main.py"),
		filepath.Join(root, "docs", "b.txt"),
	}, paths)
}

func Test_Scanner_Restartable(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"one.md": "1", "two.md": "2"})
	s := newTestScanner(root)

	first := collect(context.Background(), s)
	writeTree(t, root, map[string]string{"three.md": "3"})
	second := collect(context.Background(), s)

	assert.Len(t, first, 2)
	assert.Len(t, second, 3)
}

func Test_Scanner_EarlyBreak(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "a", "b.md": "b", "c.md": "c"})

	count := 0
	for range newTestScanner(root).Candidates(context.Background()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func Test_Scanner_CancelledContext(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "a", "b.md": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, collect(ctx, newTestScanner(root)))
}

func Test_Scanner_MultipleRootsAndMissingRoot(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	missing := filepath.Join(t.TempDir(), "gone")
	writeTree(t, first, map[string]string{"a.md": "a"})
	writeTree(t, second, map[string]string{"b.md": "b"})

	paths := collect(context.Background(), newTestScanner(first, missing, second))

	assert.Equal(t, []string{filepath.Join(first, "a.md"), filepath.Join(second, "b.md")}, paths)
}

func Test_Scanner_ReportsSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "hello"})

	for c := range newTestScanner(root).Candidates(context.Background()) {
		assert.Equal(t, int64(5), c.Size)
		assert.NotZero(t, c.ModTime)
	}
}
