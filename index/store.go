package index

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// ErrCorrupt marks an on-disk index that cannot be opened or fails its
// consistency check. Recovery is a vacuum into a fresh store.
var ErrCorrupt = errors.New("index corrupt")

// Store is the authoritative full-text index. Mutations are serialized by
// writeMu; searches go straight to Bleve, whose snapshots give readers either
// the pre- or post-mutation state of a document.
type Store struct {
	path    string
	index   bleve.Index
	logger  *slog.Logger
	writeMu sync.Mutex

	metaMu sync.RWMutex
	meta   Metadata

	// generation increments on every mutation; query caches key on it.
	generation atomic.Uint64
}

// Open opens the index at path, creating it when the directory does not
// exist. An empty path creates an in-memory index.
func Open(path string, logger *slog.Logger) (*Store, error) {
	bleveIndex, err := openBleve(path)
	if err != nil {
		return nil, err
	}

	store := &Store{path: path, index: bleveIndex, logger: logger}
	if err := store.loadMetadata(); err != nil {
		bleveIndex.Close()
		return nil, err
	}

	logger.Info("index opened",
		"path", displayPath(path),
		"files", store.meta.TotalFiles,
		"chars", store.meta.TotalChars,
	)
	return store, nil
}

func openBleve(path string) (bleve.Index, error) {
	if path == "" {
		bleveIndex, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating bleve index: %w", err)
		}
		return bleveIndex, nil
	}

	bleveIndex, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
		bleveIndex, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating bleve index %s: %w", path, err)
		}
		return bleveIndex, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrCorrupt, path, err)
	}
	return bleveIndex, nil
}

// buildIndexMapping creates the Bleve index mapping. Content and the title
// words of the file name use the English analyzer so that scoring follows
// stemmed terms.
func buildIndexMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	contentFieldMapping := bleve.NewTextFieldMapping()
	contentFieldMapping.Analyzer = en.AnalyzerName
	contentFieldMapping.Store = true
	contentFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("content", contentFieldMapping)

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = false
	titleFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("title", titleFieldMapping)

	previewFieldMapping := bleve.NewTextFieldMapping()
	previewFieldMapping.Index = false
	previewFieldMapping.Store = true
	previewFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("preview", previewFieldMapping)

	for _, name := range []string{"path", "name", "type", "hash"} {
		keywordFieldMapping := bleve.NewKeywordFieldMapping()
		keywordFieldMapping.Store = true
		keywordFieldMapping.IncludeInAll = false
		docMapping.AddFieldMappingsAt(name, keywordFieldMapping)
	}

	modifiedFieldMapping := bleve.NewDateTimeFieldMapping()
	modifiedFieldMapping.Store = true
	modifiedFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("modified", modifiedFieldMapping)

	charsFieldMapping := bleve.NewNumericFieldMapping()
	charsFieldMapping.Store = true
	charsFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("chars", charsFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// loadMetadata reads the persisted metadata and checks it against the
// document count. A mismatch means the index was modified behind our back.
func (s *Store) loadMetadata() error {
	count, err := s.index.DocCount()
	if err != nil {
		return fmt.Errorf("%w: counting documents: %w", ErrCorrupt, err)
	}

	raw, err := s.index.GetInternal(metadataKey)
	if err != nil {
		return fmt.Errorf("%w: reading metadata: %w", ErrCorrupt, err)
	}
	if raw == nil {
		if count != 0 {
			return fmt.Errorf("%w: %d documents but no metadata", ErrCorrupt, count)
		}
		s.meta = newMetadata()
		return nil
	}

	meta, err := decodeMetadata(raw)
	if err != nil {
		return fmt.Errorf("%w: decoding metadata: %w", ErrCorrupt, err)
	}
	if meta.TotalFiles != int64(count) {
		return fmt.Errorf("%w: metadata lists %d files, index holds %d", ErrCorrupt, meta.TotalFiles, count)
	}
	s.meta = meta
	return nil
}

// Upsert inserts the document, replaces it when the hash differs, or does
// nothing when the stored hash matches.
func (s *Store) Upsert(doc Document) (Outcome, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, found, err := s.lookup(doc.Path)
	if err != nil {
		return Unchanged, err
	}
	if found && existing.Hash == doc.Hash {
		return Unchanged, nil
	}

	meta := s.Stats()
	if found {
		meta.remove(existing.Type, existing.Chars)
	}
	meta.add(doc.Type, doc.Chars)
	meta.LastIndexed = time.Now()

	batch := s.index.NewBatch()
	if err := batch.Index(doc.Path, toBleve(doc)); err != nil {
		return Unchanged, fmt.Errorf("indexing %s: %w", doc.Path, err)
	}
	if err := s.commit(batch, meta); err != nil {
		return Unchanged, fmt.Errorf("indexing %s: %w", doc.Path, err)
	}

	if found {
		return Updated, nil
	}
	return Inserted, nil
}

// Delete removes the document for path. It reports whether one existed.
func (s *Store) Delete(path string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, found, err := s.lookup(path)
	if err != nil || !found {
		return false, err
	}

	meta := s.Stats()
	meta.remove(existing.Type, existing.Chars)
	meta.LastIndexed = time.Now()

	batch := s.index.NewBatch()
	batch.Delete(path)
	if err := s.commit(batch, meta); err != nil {
		return false, fmt.Errorf("removing %s from index: %w", path, err)
	}
	return true, nil
}

// MarkIndexed records the completion time of a full pass without touching
// any document.
func (s *Store) MarkIndexed(at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	meta := s.Stats()
	meta.LastIndexed = at
	return s.commit(s.index.NewBatch(), meta)
}

// commit applies the batch together with the metadata record, so a crash
// never leaves documents and metadata out of step.
func (s *Store) commit(batch *bleve.Batch, meta Metadata) error {
	encoded, err := meta.encode()
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	batch.SetInternal(metadataKey, encoded)
	if err := s.index.Batch(batch); err != nil {
		return err
	}

	s.metaMu.Lock()
	s.meta = meta
	s.metaMu.Unlock()
	s.generation.Add(1)
	return nil
}

// Stats returns a copy of the current metadata.
func (s *Store) Stats() Metadata {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.meta.clone()
}

// Generation returns a counter that changes after every mutation.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// Path returns the on-disk location, or "" for an in-memory index.
func (s *Store) Path() string {
	return s.path
}

// Close closes the Bleve index.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.index.Close()
}

func displayPath(path string) string {
	if path == "" {
		return "(memory)"
	}
	return path
}
