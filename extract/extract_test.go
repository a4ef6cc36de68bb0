package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexandro/contentindex/doctype"
)

func Test_Text_PlainUTF8(t *testing.T) {
	text, err := Text(doctype.Markdown, []byte("# Notes\npattern theory basics\n"))
	require.NoError(t, err)
	assert.Equal(t, "# Notes\npattern theory basics\n", text)
}

func Test_Text_StripsUTF8BOM(t *testing.T) {
	text, err := Text(doctype.Text, append([]byte{0xEF, 0xBB, 0xBF}, "hello"...))
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func Test_Text_UTF16WithBOM(t *testing.T) {
	// "hi" in UTF-16LE, as written by PowerShell redirection.
	data := []byte{0xFF, 0xFE, 'h', 0, 'i', 0}
	text, err := Text(doctype.PowerShell, data)
	require.NoError(t, err)
	assert.Equal(t, "hi", text)
}

func Test_Text_BinaryRejected(t *testing.T) {
	_, err := Text(doctype.Text, []byte{'a', 0, 'b', 0, 0, 0})
	require.ErrorIs(t, err, ErrBinary)
}

func Test_Text_HTML(t *testing.T) {
	page := `<html><body><h1>Title</h1><p>Hello <b>world</b></p></body></html>`
	text, err := Text(doctype.HTML, []byte(page))
	require.NoError(t, err)
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "world")
	assert.NotContains(t, text, "<p>")
}

func Test_Text_Email(t *testing.T) {
	msg := "From: a@example.com\r\nTo: b@example.com\r\nSubject: Quarterly plan\r\nContent-Type: text/plain\r\n\r\nThe budget review moves to Friday.\r\n"
	text, err := Text(doctype.Email, []byte(msg))
	require.NoError(t, err)
	assert.Contains(t, text, "Quarterly plan")
	assert.Contains(t, text, "budget review")
}

func Test_Text_Mailbox(t *testing.T) {
	box := "From a@example.com Mon Jan  1 00:00:00 2024\n" +
		"Subject: first\n\nalpha message body\n\n" +
		"From b@example.com Mon Jan  1 00:00:01 2024\n" +
		"Subject: second\n\nbeta message body\n"
	text, err := Text(doctype.Mailbox, []byte(box))
	require.NoError(t, err)
	assert.Contains(t, text, "alpha message body")
	assert.Contains(t, text, "beta message body")
}

func Test_Text_InvalidPDF(t *testing.T) {
	_, err := Text(doctype.PDF, []byte("not a pdf"))
	require.Error(t, err)
}

func Test_Preview(t *testing.T) {
	assert.Equal(t, "line one line two", Preview("line one\nline two"))

	long := strings.Repeat("é", PreviewLength+50)
	preview := Preview(long)
	assert.Equal(t, PreviewLength, len([]rune(preview)))
}

func Test_Truncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, "", Truncate("abc", 0))
}
