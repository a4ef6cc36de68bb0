package doctype

import (
	"path/filepath"
	"strings"
)

// Type is the content type of an indexed document. It is derived once from
// the file extension at ingestion time and stored on the document.
type Type string

const (
	Markdown   Type = "md"
	Text       Type = "txt"
	Python     Type = "py"
	JavaScript Type = "js"
	HTML       Type = "html"
	JSON       Type = "json"
	Batch      Type = "bat"
	PowerShell Type = "ps1"
	CSS        Type = "css"
	PDF        Type = "pdf"
	Email      Type = "eml"
	Mailbox    Type = "mbox"
	// Other covers allow-listed extensions outside the known set. Their
	// content is treated as plain text.
	Other Type = "other"
)

// all lists every Type in display order.
var all = []Type{Markdown, Text, Python, JavaScript, HTML, JSON, Batch, PowerShell, CSS, PDF, Email, Mailbox, Other}

// extensionToType maps lowercase extensions (without dot) to types.
var extensionToType = map[string]Type{
	"md": Markdown, "markdown": Markdown, "mdx": Markdown,
	"txt":  Text,
	"py":   Python, "pyw": Python,
	"js":   JavaScript, "mjs": JavaScript, "cjs": JavaScript,
	"html": HTML, "htm": HTML,
	"json": JSON,
	"bat":  Batch, "cmd": Batch,
	"ps1":  PowerShell, "psm1": PowerShell,
	"css":  CSS,
	"pdf":  PDF,
	"eml":  Email,
	"mbox": Mailbox,
}

// FromPath returns the content type for a file path based on its extension.
func FromPath(filePath string) Type {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	if t, ok := extensionToType[ext]; ok {
		return t
	}
	return Other
}

// Parse validates a type name supplied by a caller, e.g. a search filter.
func Parse(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range all {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// All returns every known type.
func All() []Type {
	return append([]Type(nil), all...)
}

func (t Type) String() string { return string(t) }

// IsDocument reports whether the type needs a structured extractor rather
// than a plain text decode.
func (t Type) IsDocument() bool {
	switch t {
	case PDF, Email, Mailbox:
		return true
	}
	return false
}
