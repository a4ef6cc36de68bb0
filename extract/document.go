package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime"
	"github.com/ledongthuc/pdf"
)

// pdfText extracts page text from a PDF. The pdf library panics on some
// malformed files, so every call into it is guarded.
func pdfText(data []byte) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("reading pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return
			}
			b.WriteString(text)
			b.WriteString("\n")
		}()
	}
	return strings.TrimSpace(b.String()), nil
}

// emailText returns the subject and body of a MIME message, preferring the
// plain text part over HTML.
func emailText(data []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing email: %w", err)
	}

	body := env.Text
	if strings.TrimSpace(body) == "" && env.HTML != "" {
		body = htmlToText(env.HTML)
	}

	var b strings.Builder
	if subject := env.GetHeader("Subject"); subject != "" {
		b.WriteString(subject)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(body))
	return b.String(), nil
}

// mailboxText concatenates every message of an mbox file. Messages that
// fail to parse are skipped.
func mailboxText(data []byte) (string, error) {
	reader := mbox.NewReader(bytes.NewReader(data))
	var b strings.Builder
	for {
		msg, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading mbox: %w", err)
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			continue
		}
		text, err := emailText(raw)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
