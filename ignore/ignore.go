package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/denormal/go-gitignore"
)

// Matcher decides whether a path is eligible for indexing. It combines the
// extension allow-list, excluded directory names, custom glob patterns,
// optional per-root .gitignore rules and the file size ceiling.
// Thread-safe: Reload() acquires a write lock, the checks acquire a read lock.
type Matcher struct {
	mu               sync.RWMutex
	roots            []string
	extensions       map[string]struct{}
	excludeDirs      map[string]struct{}
	customPatterns   []string
	respectGitignore bool
	gitIgnores       map[string]gitignore.GitIgnore // key: root
	maxFileSizeBytes int64
}

// MatcherOptions configures the matcher.
type MatcherOptions struct {
	Roots            []string
	Extensions       []string
	ExcludeDirs      []string
	CustomPatterns   []string
	RespectGitignore bool
	MaxFileSizeBytes int64
}

// NewMatcher creates a matcher. Empty extension and directory lists fall
// back to the defaults.
func NewMatcher(options MatcherOptions) *Matcher {
	matcher := &Matcher{
		extensions:       make(map[string]struct{}),
		excludeDirs:      make(map[string]struct{}),
		customPatterns:   options.CustomPatterns,
		respectGitignore: options.RespectGitignore,
		maxFileSizeBytes: options.MaxFileSizeBytes,
	}

	if matcher.maxFileSizeBytes <= 0 {
		matcher.maxFileSizeBytes = DefaultMaxFileSizeBytes
	}

	for _, root := range options.Roots {
		matcher.roots = append(matcher.roots, filepath.Clean(root))
	}

	extensions := options.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		matcher.extensions[ext] = struct{}{}
	}

	excludeDirs := options.ExcludeDirs
	if len(excludeDirs) == 0 {
		excludeDirs = DefaultExcludeDirs
	}
	for _, dir := range excludeDirs {
		matcher.excludeDirs[strings.ToLower(dir)] = struct{}{}
	}

	matcher.gitIgnores = matcher.loadGitIgnores()
	return matcher
}

// Eligible reports whether a file with the given stat info may be indexed.
// Directories are never eligible.
func (m *Matcher) Eligible(absolutePath string, size int64, isDir bool) bool {
	if isDir || m.IsFileTooLarge(size) {
		return false
	}
	return m.EligiblePath(absolutePath)
}

// EligiblePath applies every rule that does not need a stat: root
// containment, extension, excluded directories, patterns and .gitignore.
// It is used for paths that no longer exist, e.g. delete events.
func (m *Matcher) EligiblePath(absolutePath string) bool {
	root, relativePath, ok := m.locate(absolutePath)
	if !ok || relativePath == "." {
		return false
	}

	if _, ok := m.extensions[strings.ToLower(filepath.Ext(absolutePath))]; !ok {
		return false
	}

	// Every directory between the root and the file must be allowed.
	parts := strings.Split(relativePath, "/")
	for _, part := range parts[:len(parts)-1] {
		if m.excludedDirName(part) {
			return false
		}
	}

	if m.matchesCustomPatterns(relativePath) {
		return false
	}

	return !m.gitIgnored(root, relativePath, false)
}

// ShouldSkipDir returns true if a directory should not be descended into.
// Watched roots themselves are never skipped.
func (m *Matcher) ShouldSkipDir(absolutePath string) bool {
	root, relativePath, ok := m.locate(absolutePath)
	if !ok {
		return true
	}
	if relativePath == "." {
		return false
	}

	// Fast check on the directory name (no lock needed)
	if m.excludedDirName(filepath.Base(absolutePath)) {
		return true
	}

	if m.matchesCustomPatterns(relativePath) {
		return true
	}

	return m.gitIgnored(root, relativePath, true)
}

// IsFileTooLarge returns true if the file exceeds the size ceiling.
func (m *Matcher) IsFileTooLarge(fileSize int64) bool {
	return fileSize > m.maxFileSizeBytes
}

// MaxFileSizeBytes returns the configured size ceiling.
func (m *Matcher) MaxFileSizeBytes() int64 {
	return m.maxFileSizeBytes
}

// Roots returns the watched roots.
func (m *Matcher) Roots() []string {
	return append([]string(nil), m.roots...)
}

// Reload re-reads the .gitignore file of every root.
// Used when the watcher sees one of them change.
func (m *Matcher) Reload() {
	gitIgnores := m.loadGitIgnores()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.gitIgnores = gitIgnores
}

// locate finds the watched root containing the path and returns the path
// relative to it, with forward slashes.
func (m *Matcher) locate(absolutePath string) (string, string, bool) {
	absolutePath = filepath.Clean(absolutePath)
	for _, root := range m.roots {
		relativePath, err := filepath.Rel(root, absolutePath)
		if err != nil || relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
			continue
		}
		return root, filepath.ToSlash(relativePath), true
	}
	return "", "", false
}

// excludedDirName checks a single directory name against the excluded list.
// Hidden directories are excluded as well.
func (m *Matcher) excludedDirName(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		return true
	}
	_, excluded := m.excludeDirs[strings.ToLower(name)]
	return excluded
}

// matchesCustomPatterns checks the relative path and the base name against
// the user-supplied doublestar patterns.
func (m *Matcher) matchesCustomPatterns(relativePath string) bool {
	baseName := filepath.Base(relativePath)
	for _, pattern := range m.customPatterns {
		if matched, err := doublestar.Match(pattern, relativePath); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, baseName); err == nil && matched {
			return true
		}
	}
	return false
}

func (m *Matcher) gitIgnored(root string, relativePath string, isDir bool) bool {
	if !m.respectGitignore {
		return false
	}

	m.mu.RLock()
	gi := m.gitIgnores[root]
	m.mu.RUnlock()
	if gi == nil {
		return false
	}

	// Relative() does not require the path to exist on disk
	match := gi.Relative(relativePath, isDir)
	return match != nil && match.Ignore()
}

func (m *Matcher) loadGitIgnores() map[string]gitignore.GitIgnore {
	gitIgnores := make(map[string]gitignore.GitIgnore)
	if !m.respectGitignore {
		return gitIgnores
	}
	for _, root := range m.roots {
		if gi := loadIgnoreFile(filepath.Join(root, ".gitignore"), root); gi != nil {
			gitIgnores[root] = gi
		}
	}
	return gitIgnores
}

// loadIgnoreFile reads an ignore file and creates a GitIgnore matcher from it.
// Uses the io.Reader form so the file handle is closed before returning.
func loadIgnoreFile(filePath string, baseDir string) gitignore.GitIgnore {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	return gitignore.New(f, baseDir, nil)
}
