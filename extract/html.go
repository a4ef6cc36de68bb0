package extract

import (
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
)

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// htmlText renders an HTML page as readable text. Pages html2text cannot
// parse fall back to tag stripping.
func htmlText(data []byte) (string, error) {
	source, err := plainText(data)
	if err != nil {
		return "", err
	}
	return htmlToText(source), nil
}

func htmlToText(source string) string {
	text, err := html2text.FromString(source, html2text.Options{OmitLinks: true})
	if err != nil {
		return stripHTMLTags(source)
	}
	return text
}

// stripHTMLTags removes tags and collapses whitespace.
func stripHTMLTags(html string) string {
	text := tagRegex.ReplaceAllString(html, " ")
	text = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&nbsp;", " ").Replace(text)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}
