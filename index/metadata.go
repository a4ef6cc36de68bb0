package index

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/lexandro/contentindex/doctype"
)

// metadataKey is the internal key the metadata record is stored under.
var metadataKey = []byte("_meta")

// Metadata is the singleton summary record of the index.
type Metadata struct {
	LastIndexed time.Time              `json:"last_indexed"`
	TotalFiles  int64                  `json:"total_files"`
	TotalChars  int64                  `json:"total_chars"`
	FilesByType map[doctype.Type]int64 `json:"files_by_type"`
}

func newMetadata() Metadata {
	return Metadata{FilesByType: make(map[doctype.Type]int64)}
}

func (m Metadata) clone() Metadata {
	out := m
	out.FilesByType = maps.Clone(m.FilesByType)
	if out.FilesByType == nil {
		out.FilesByType = make(map[doctype.Type]int64)
	}
	return out
}

func (m *Metadata) add(t doctype.Type, chars int64) {
	m.TotalFiles++
	m.TotalChars += chars
	m.FilesByType[t]++
}

func (m *Metadata) remove(t doctype.Type, chars int64) {
	m.TotalFiles--
	m.TotalChars -= chars
	m.FilesByType[t]--
	if m.FilesByType[t] <= 0 {
		delete(m.FilesByType, t)
	}
}

func (m Metadata) encode() ([]byte, error) {
	return json.Marshal(m)
}

func decodeMetadata(data []byte) (Metadata, error) {
	meta := newMetadata()
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, err
	}
	if meta.FilesByType == nil {
		meta.FilesByType = make(map[doctype.Type]int64)
	}
	return meta, nil
}
