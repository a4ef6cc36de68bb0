package query

import (
	"strings"
	"unicode/utf8"

	"github.com/lexandro/contentindex/extract"
	"github.com/lexandro/contentindex/index"
)

const ellipsis = "..."

// maxSnippetRunes caps a snippet whose tokens are very long, such as an
// encoded blob in a data file.
const maxSnippetRunes = 1000

// marker wraps matched terms in a snippet.
type marker struct {
	open  string
	close string
}

var (
	searchMarker = marker{open: "**", close: "**"}
	askMarker    = marker{open: ">>>", close: "<<<"}
)

// snippet cuts a window of at most size tokens out of content, placed where
// it covers the most distinct query terms, and wraps every match in the
// marker. Cut ends get an ellipsis; whitespace is collapsed.
func snippet(tokens []index.Token, content string, terms map[string]struct{}, size int, m marker) string {
	if len(tokens) == 0 {
		return bounded(collapse(content))
	}

	start := bestWindow(tokens, terms, size)
	end := min(start+size, len(tokens))

	from := tokens[start].Start
	if start == 0 {
		from = 0
	}
	to := tokens[end-1].End
	if end == len(tokens) {
		to = len(content)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ellipsis)
	}
	cursor := from
	for _, token := range tokens[start:end] {
		if _, ok := terms[token.Term]; !ok {
			continue
		}
		b.WriteString(content[cursor:token.Start])
		b.WriteString(m.open)
		b.WriteString(content[token.Start:token.End])
		b.WriteString(m.close)
		cursor = token.End
	}
	b.WriteString(content[cursor:to])
	if end < len(tokens) {
		b.WriteString(ellipsis)
	}
	return bounded(collapse(b.String()))
}

// bestWindow returns the first token index of the window of the given size
// that holds the most distinct terms, preferring more total matches and then
// the earliest position.
func bestWindow(tokens []index.Token, terms map[string]struct{}, size int) int {
	if len(tokens) <= size {
		return 0
	}

	var matches []int
	for i, token := range tokens {
		if _, ok := terms[token.Term]; ok {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return 0
	}

	best, bestDistinct, bestTotal := 0, -1, -1
	for i, first := range matches {
		distinct := make(map[string]struct{})
		total := 0
		for _, pos := range matches[i:] {
			if pos >= first+size {
				break
			}
			distinct[tokens[pos].Term] = struct{}{}
			total++
		}
		if len(distinct) > bestDistinct || len(distinct) == bestDistinct && total > bestTotal {
			best, bestDistinct, bestTotal = first, len(distinct), total
		}
	}

	// Keep the window full near the end of the document.
	return min(best, len(tokens)-size)
}

func bounded(s string) string {
	if utf8.RuneCountInString(s) <= maxSnippetRunes {
		return s
	}
	return extract.Truncate(s, maxSnippetRunes) + ellipsis
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
