package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/lexandro/contentindex/doctype"
)

// minCharsetConfidence is the chardet confidence below which a legacy
// charset guess is ignored.
const minCharsetConfidence = 50

// plainText decodes text files. A UTF-8 or UTF-16 byte order mark selects the
// encoding; otherwise invalid UTF-8 is run through charset detection before
// falling back to replacement characters.
func plainText(data []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), data)
	if err != nil {
		return "", fmt.Errorf("decoding text: %w", err)
	}
	if doctype.IsBinaryContent(decoded) {
		return "", ErrBinary
	}
	if utf8.Valid(decoded) {
		return string(decoded), nil
	}
	if text, ok := decodeLegacy(decoded); ok {
		return text, nil
	}
	return strings.ToValidUTF8(string(decoded), "\uFFFD"), nil
}

// decodeLegacy guesses a single-byte or legacy multi-byte charset, e.g. the
// Windows-1252 files older editors produce.
func decodeLegacy(data []byte) (string, bool) {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result.Confidence < minCharsetConfidence {
		return "", false
	}
	enc, err := htmlindex.Get(result.Charset)
	if err != nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}
