package index

import (
	"strings"
	"time"

	"github.com/lexandro/contentindex/doctype"
)

// Document is one indexed file, keyed by its absolute path.
type Document struct {
	Path     string       // Absolute file path, the unique key
	Name     string       // Base name
	Type     doctype.Type // Content type derived from the extension
	Content  string       // Full extracted text
	Preview  string       // First characters of the content, newlines flattened
	Modified time.Time    // Source mtime
	Hash     string       // Digest of the raw file bytes
	Chars    int64        // Character count of Content
}

// Outcome reports what an upsert did.
type Outcome int

const (
	Unchanged Outcome = iota
	Inserted
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// bleveDocument is the document structure stored in Bleve.
type bleveDocument struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Content  string    `json:"content"`
	Preview  string    `json:"preview"`
	Modified time.Time `json:"modified"`
	Hash     string    `json:"hash"`
	Chars    float64   `json:"chars"`
}

func toBleve(doc Document) bleveDocument {
	return bleveDocument{
		Path:     doc.Path,
		Name:     doc.Name,
		Title:    titleWords(doc.Name),
		Type:     string(doc.Type),
		Content:  doc.Content,
		Preview:  doc.Preview,
		Modified: doc.Modified,
		Hash:     doc.Hash,
		Chars:    float64(doc.Chars),
	}
}

// titleSeparators split file names into words; the unicode tokenizer keeps
// "roadmap.md" or "q3_plan" together as a single token.
var titleSeparators = strings.NewReplacer(".", " ", "_", " ", "-", " ")

func titleWords(name string) string {
	return titleSeparators.Replace(name)
}

// fromFields rebuilds a document from stored fields of a search hit.
// Fields that were not requested stay zero.
func fromFields(id string, fields map[string]interface{}) Document {
	return Document{
		Path:     id,
		Name:     fieldString(fields, "name"),
		Type:     doctype.Type(fieldString(fields, "type")),
		Content:  fieldString(fields, "content"),
		Preview:  fieldString(fields, "preview"),
		Modified: fieldTime(fields, "modified"),
		Hash:     fieldString(fields, "hash"),
		Chars:    fieldInt(fields, "chars"),
	}
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func fieldTime(fields map[string]interface{}, name string) time.Time {
	v, ok := fields[name].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func fieldInt(fields map[string]interface{}, name string) int64 {
	if v, ok := fields[name].(float64); ok {
		return int64(v)
	}
	return 0
}
