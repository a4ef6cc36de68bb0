// Package query answers read requests against the index: ranked search,
// natural language questions, recent files, single documents and stats.
package query

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lexandro/contentindex/doctype"
	"github.com/lexandro/contentindex/extract"
	"github.com/lexandro/contentindex/index"
)

const (
	DefaultSearchLimit = 20
	DefaultAskLimit    = 5
	DefaultRecentLimit = 20
	DefaultFilesLimit  = 50
	MaxLimit           = 200

	searchSnippetTokens = 64
	askSnippetTokens    = 100
	recentPreviewLength = 200
)

// stopWords are dropped from questions before they are searched.
var stopWords = map[string]struct{}{
	"what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "do": {}, "i": {},
	"know": {}, "about": {}, "the": {}, "a": {}, "an": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "my": {}, "to": {}, "for": {},
}

// Options configures a Service.
type Options struct {
	// Roots resolve relative paths passed to File.
	Roots []string
	// IndexPath is reported by Health.
	IndexPath string
	// CacheSize is the number of search and ask responses kept; 0 disables.
	CacheSize int
}

// Service runs queries. It only reads from the store and is safe for
// concurrent use.
type Service struct {
	store     *index.Store
	roots     []string
	indexPath string
	cache     *lru.Cache[string, any]
	logger    *slog.Logger
}

// NewService creates a query service. A nil store yields a service whose
// operations report KindUnavailable.
func NewService(store *index.Store, options Options, logger *slog.Logger) *Service {
	s := &Service{
		store:     store,
		roots:     options.Roots,
		indexPath: options.IndexPath,
		logger:    logger,
	}
	if options.CacheSize > 0 {
		cache, err := lru.New[string, any](options.CacheSize)
		if err == nil {
			s.cache = cache
		}
	}
	if s.indexPath == "" && store != nil {
		s.indexPath = store.Path()
	}
	return s
}

// Search runs a ranked query requiring every term.
func (s *Service) Search(q, docType string, limit int) (SearchResponse, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return SearchResponse{}, invalid("query required", "use ?q=your+search+terms")
	}
	var filter doctype.Type
	if docType != "" {
		t, ok := doctype.Parse(docType)
		if !ok {
			return SearchResponse{}, invalid(fmt.Sprintf("unknown type %q", docType), "valid types: "+typeList())
		}
		filter = t
	}
	if s.store == nil {
		return SearchResponse{}, errUnavailable
	}
	limit = clampLimit(limit, DefaultSearchLimit)

	key := fmt.Sprintf("search|%d|%s|%d|%s", s.store.Generation(), filter, limit, q)
	if cached, ok := s.cached(key); ok {
		return cached.(SearchResponse), nil
	}

	hits, err := s.store.Search(index.SearchRequest{Query: q, Type: filter, Limit: limit, Match: index.MatchAll})
	if err != nil {
		return SearchResponse{}, internal("search failed", err)
	}

	terms := s.termSet(q)
	response := SearchResponse{Query: q, Results: make([]SearchResult, 0, len(hits))}
	for _, hit := range hits {
		doc := hit.Document
		response.Results = append(response.Results, SearchResult{
			Path:     doc.Path,
			Name:     doc.Name,
			Type:     string(doc.Type),
			Snippet:  snippet(s.store.Analyze(doc.Content), doc.Content, terms, searchSnippetTokens, searchMarker),
			Modified: formatTime(doc.Modified),
			Score:    round3(hit.Score),
		})
	}
	response.Count = len(response.Results)

	s.remember(key, response)
	s.logger.Debug("search", "query", q, "type", filter, "results", response.Count)
	return response, nil
}

// Ask answers a natural language question. Stop words and short words are
// removed and the remaining terms are searched with any-term matching.
func (s *Service) Ask(question string, limit int) (AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return AskResponse{}, invalid("question required", "use ?q=your+question")
	}
	if s.store == nil {
		return AskResponse{}, errUnavailable
	}
	limit = clampLimit(limit, DefaultAskLimit)

	key := fmt.Sprintf("ask|%d|%d|%s", s.store.Generation(), limit, question)
	if cached, ok := s.cached(key); ok {
		return cached.(AskResponse), nil
	}

	terms := questionTerms(question)
	request := index.SearchRequest{Query: strings.Join(terms, " "), Limit: limit, Match: index.MatchAny}
	if len(terms) == 0 {
		request.Query = question
		request.Match = index.MatchAll
	}

	hits, err := s.store.Search(request)
	if err != nil {
		return AskResponse{}, internal("search failed", err)
	}

	termSet := s.termSet(request.Query)
	response := AskResponse{Question: question, SearchTerms: terms, Answers: make([]Answer, 0, len(hits))}
	for _, hit := range hits {
		doc := hit.Document
		response.Answers = append(response.Answers, Answer{
			Source:    doc.Name,
			Path:      doc.Path,
			Answer:    snippet(s.store.Analyze(doc.Content), doc.Content, termSet, askSnippetTokens, askMarker),
			Relevance: round3(hit.Score),
		})
	}

	s.remember(key, response)
	s.logger.Debug("ask", "question", question, "terms", terms, "answers", len(response.Answers))
	return response, nil
}

// Recent lists documents by modification time, newest first.
func (s *Service) Recent(limit int) (RecentResponse, error) {
	if s.store == nil {
		return RecentResponse{}, errUnavailable
	}
	docs, err := s.store.Recent(clampLimit(limit, DefaultRecentLimit))
	if err != nil {
		return RecentResponse{}, internal("listing recent files failed", err)
	}

	response := RecentResponse{Files: make([]RecentFile, 0, len(docs))}
	for _, doc := range docs {
		response.Files = append(response.Files, RecentFile{
			Path:     doc.Path,
			Name:     doc.Name,
			Type:     string(doc.Type),
			Preview:  extract.Truncate(doc.Preview, recentPreviewLength),
			Modified: formatTime(doc.Modified),
		})
	}
	response.Count = len(response.Files)
	return response, nil
}

// File returns the full stored document. Relative paths are tried against
// each root in turn.
func (s *Service) File(path string) (FileResponse, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return FileResponse{}, invalid("path required", "use ?path=/absolute/path/to/file")
	}
	if s.store == nil {
		return FileResponse{}, errUnavailable
	}

	for _, candidate := range s.resolve(path) {
		doc, found, err := s.store.Get(candidate)
		if err != nil {
			return FileResponse{}, internal("reading document failed", err)
		}
		if found {
			return FileResponse{
				Path:     doc.Path,
				Name:     doc.Name,
				Type:     string(doc.Type),
				Content:  doc.Content,
				Modified: formatTime(doc.Modified),
			}, nil
		}
	}
	return FileResponse{}, &Error{Kind: KindNotFound, Message: "file not found in index", Hint: path}
}

func (s *Service) resolve(path string) []string {
	if filepath.IsAbs(path) {
		return []string{filepath.Clean(path)}
	}
	candidates := make([]string, 0, len(s.roots))
	for _, root := range s.roots {
		candidates = append(candidates, filepath.Join(root, filepath.FromSlash(path)))
	}
	return candidates
}

// Stats reports the index metadata.
func (s *Service) Stats() (StatsResponse, error) {
	if s.store == nil {
		return StatsResponse{}, errUnavailable
	}
	meta := s.store.Stats()

	response := StatsResponse{
		Status:          "operational",
		LastIndexed:     "never",
		TotalFiles:      meta.TotalFiles,
		TotalCharacters: meta.TotalChars,
		FilesByType:     make(map[string]int64, len(meta.FilesByType)),
	}
	if !meta.LastIndexed.IsZero() {
		response.LastIndexed = formatTime(meta.LastIndexed)
	}
	for t, count := range meta.FilesByType {
		response.FilesByType[string(t)] = count
	}
	return response, nil
}

// Health reports whether an index is open. It never fails.
func (s *Service) Health() HealthResponse {
	if s.store == nil {
		return HealthResponse{Status: "no database", Database: s.indexPath, DatabaseExists: false}
	}
	return HealthResponse{Status: "healthy", Database: s.indexPath, DatabaseExists: true}
}

// Files lists indexed paths matching a glob pattern. The pattern is tried
// against the absolute path, the path relative to its root and the base name.
func (s *Service) Files(pattern string, limit int) (FilesResponse, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return FilesResponse{}, invalid("pattern required", "use ?pattern=**/*.md")
	}
	if !doublestar.ValidatePattern(pattern) {
		return FilesResponse{}, invalid(fmt.Sprintf("invalid pattern %q", pattern), "see https://github.com/bmatcuk/doublestar#patterns")
	}
	if s.store == nil {
		return FilesResponse{}, errUnavailable
	}
	limit = clampLimit(limit, DefaultFilesLimit)

	paths, err := s.store.Paths()
	if err != nil {
		return FilesResponse{}, internal("listing indexed files failed", err)
	}

	response := FilesResponse{Pattern: pattern, Files: make([]string, 0)}
	for _, path := range paths {
		if !s.matchPath(pattern, path) {
			continue
		}
		response.Total++
		if len(response.Files) < limit {
			response.Files = append(response.Files, path)
		}
	}
	response.Count = len(response.Files)
	return response, nil
}

func (s *Service) matchPath(pattern, path string) bool {
	slashed := filepath.ToSlash(path)
	if ok, _ := doublestar.Match(pattern, slashed); ok {
		return true
	}
	if ok, _ := doublestar.Match(pattern, filepath.Base(path)); ok {
		return true
	}
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if ok, _ := doublestar.Match(pattern, filepath.ToSlash(rel)); ok {
			return true
		}
	}
	return false
}

// termSet analyzes text the way the index does.
func (s *Service) termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, token := range s.store.Analyze(text) {
		terms[token.Term] = struct{}{}
	}
	return terms
}

func (s *Service) cached(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) remember(key string, value any) {
	if s.cache != nil {
		s.cache.Add(key, value)
	}
}

// questionTerms lowercases the question and keeps words longer than two
// characters that are not stop words.
func questionTerms(question string) []string {
	terms := make([]string, 0)
	for _, word := range strings.Fields(strings.ToLower(question)) {
		if _, stop := stopWords[word]; stop || utf8.RuneCountInString(word) <= 2 {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return min(limit, MaxLimit)
}

func round3(score float64) float64 {
	return math.Round(math.Abs(score)*1000) / 1000
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func typeList() string {
	names := make([]string, 0, len(doctype.All()))
	for _, t := range doctype.All() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
