package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/lexandro/contentindex/doctype"
)

// nameBoost weights matches in the file name above matches in the body.
const nameBoost = 2.0

// pathPageSize is the page size used when listing every indexed path.
const pathPageSize = 1000

var (
	hitFields    = []string{"name", "type", "content", "modified"}
	recentFields = []string{"name", "type", "preview", "modified"}
	allFields    = []string{"name", "type", "content", "preview", "modified", "hash", "chars"}
)

// Match selects how the terms of a query combine.
type Match int

const (
	// MatchAll requires every query term to be present.
	MatchAll Match = iota
	// MatchAny accepts documents containing at least one term.
	MatchAny
)

// SearchRequest configures a ranked search.
type SearchRequest struct {
	Query string
	Type  doctype.Type // empty for all types
	Limit int
	Match Match
}

// Hit is one ranked search result. Document carries the name, type,
// content and modification time; preview and hash are not loaded.
type Hit struct {
	Document Document
	Score    float64
}

// Token is an analyzed term with its byte offsets in the analyzed text.
type Token struct {
	Term  string
	Start int
	End   int
}

// Search runs a TF-IDF ranked query over content and file names.
func (s *Store) Search(request SearchRequest) ([]Hit, error) {
	if request.Limit <= 0 {
		request.Limit = 20
	}

	searchRequest := bleve.NewSearchRequestOptions(buildQuery(request), request.Limit, 0, false)
	searchRequest.Fields = hitFields

	searchResults, err := s.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	hits := make([]Hit, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		hits = append(hits, Hit{Document: fromFields(hit.ID, hit.Fields), Score: hit.Score})
	}
	return hits, nil
}

// buildQuery combines a content match and a boosted name match, restricted
// to one content type when requested.
func buildQuery(request SearchRequest) query.Query {
	operator := query.MatchQueryOperatorAnd
	if request.Match == MatchAny {
		operator = query.MatchQueryOperatorOr
	}

	contentQuery := bleve.NewMatchQuery(request.Query)
	contentQuery.SetField("content")
	contentQuery.SetOperator(operator)

	nameQuery := bleve.NewMatchQuery(request.Query)
	nameQuery.SetField("title")
	nameQuery.SetOperator(operator)
	nameQuery.SetBoost(nameBoost)

	var q query.Query = bleve.NewDisjunctionQuery(contentQuery, nameQuery)
	if request.Type != "" {
		typeQuery := bleve.NewTermQuery(string(request.Type))
		typeQuery.SetField("type")
		q = bleve.NewConjunctionQuery(q, typeQuery)
	}
	return q
}

// Get returns the full document stored for path.
func (s *Store) Get(path string) (Document, bool, error) {
	return s.fetch(path, allFields)
}

// lookup loads only what the write path needs to compare and account.
func (s *Store) lookup(path string) (Document, bool, error) {
	return s.fetch(path, []string{"type", "hash", "chars"})
}

func (s *Store) fetch(path string, fields []string) (Document, bool, error) {
	searchRequest := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{path}), 1, 0, false)
	searchRequest.Fields = fields

	searchResults, err := s.index.Search(searchRequest)
	if err != nil {
		return Document{}, false, fmt.Errorf("looking up %s: %w", path, err)
	}
	if len(searchResults.Hits) == 0 {
		return Document{}, false, nil
	}
	hit := searchResults.Hits[0]
	return fromFields(hit.ID, hit.Fields), true, nil
}

// Recent returns documents ordered by modification time, newest first.
// Content is not loaded; Preview is.
func (s *Store) Recent(limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}

	searchRequest := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), limit, 0, false)
	searchRequest.Fields = recentFields
	searchRequest.SortBy([]string{"-modified", "_id"})

	searchResults, err := s.index.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("listing recent documents: %w", err)
	}

	docs := make([]Document, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		docs = append(docs, fromFields(hit.ID, hit.Fields))
	}
	return docs, nil
}

// Paths returns every indexed path in sorted order.
func (s *Store) Paths() ([]string, error) {
	var paths []string
	var after []string
	for {
		searchRequest := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pathPageSize, 0, false)
		searchRequest.SortBy([]string{"_id"})
		if after != nil {
			searchRequest.SetSearchAfter(after)
		}

		searchResults, err := s.index.Search(searchRequest)
		if err != nil {
			return nil, fmt.Errorf("listing indexed paths: %w", err)
		}
		for _, hit := range searchResults.Hits {
			paths = append(paths, hit.ID)
		}
		if len(searchResults.Hits) < pathPageSize {
			return paths, nil
		}
		after = []string{paths[len(paths)-1]}
	}
}

// Analyze runs text through the content analyzer, so callers can locate
// query terms in stored content the same way the index does.
func (s *Store) Analyze(text string) []Token {
	analyzer := s.index.Mapping().AnalyzerNamed(en.AnalyzerName)
	if analyzer == nil {
		return fallbackTokens(text)
	}

	stream := analyzer.Analyze([]byte(text))
	tokens := make([]Token, 0, len(stream))
	for _, token := range stream {
		tokens = append(tokens, Token{Term: string(token.Term), Start: token.Start, End: token.End})
	}
	return tokens
}

// fallbackTokens splits on whitespace and lowercases; used only if the
// analyzer is missing from the mapping.
func fallbackTokens(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text + " " {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		switch {
		case !isSpace && start < 0:
			start = i
		case isSpace && start >= 0:
			tokens = append(tokens, Token{Term: strings.ToLower(text[start:i]), Start: start, End: i})
			start = -1
		}
	}
	return tokens
}
