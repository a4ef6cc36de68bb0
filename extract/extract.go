// Package extract turns raw file bytes into the searchable text stored in the index.
package extract

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/lexandro/contentindex/doctype"
)

// ErrBinary is returned when a text type turns out to hold binary data.
var ErrBinary = errors.New("binary content")

// PreviewLength is the number of characters kept in a document preview.
const PreviewLength = 500

// Extractor converts the raw bytes of one content type into text.
type Extractor func(data []byte) (string, error)

var extractors = map[doctype.Type]Extractor{
	doctype.HTML:    htmlText,
	doctype.PDF:     pdfText,
	doctype.Email:   emailText,
	doctype.Mailbox: mailboxText,
}

// Text extracts the indexable text for a document of the given type.
// Types without a dedicated extractor are decoded as plain text.
func Text(t doctype.Type, data []byte) (string, error) {
	if extractor, ok := extractors[t]; ok {
		return extractor(data)
	}
	return plainText(data)
}

// Preview returns the first PreviewLength characters of content with
// newlines flattened to spaces.
func Preview(content string) string {
	return Truncate(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(content), PreviewLength)
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
