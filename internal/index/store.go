// ABOUTME: Store pairs the flat vector index with its docstore of chunks
// ABOUTME: Persists to <dir>/<name>/{index.bin,docstore.json} and loads with typed errors
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/harper/cenly/internal/models"
)

const (
	indexFile    = "index.bin"
	docstoreFile = "docstore.json"

	docstoreVersion = 1
)

// Hit is a vector search result before re-ranking
type Hit struct {
	Chunk    models.Chunk
	Vector   []float32
	Distance float64
}

var errStoreClosed = errors.New("index store closed")

// Store is the in-memory vector index plus docstore
type Store struct {
	model  string
	index  *FlatIndex
	ids    []string
	chunks map[string]models.Chunk

	kwMu  sync.Mutex
	kw    *KeywordIndex
	kwErr error
}

type docstore struct {
	Version   int            `json:"version"`
	Model     string         `json:"model"`
	Dimension int            `json:"dimension"`
	IDs       []string       `json:"ids"`
	Chunks    []models.Chunk `json:"chunks"`
}

// NewStore creates an empty store for vectors of the given dimension
func NewStore(model string, dim int) *Store {
	return &Store{
		model:  model,
		index:  NewFlatIndex(dim),
		chunks: make(map[string]models.Chunk),
	}
}

// Model returns the embedding model the vectors were produced with
func (s *Store) Model() string { return s.model }

// Dimension returns the vector width
func (s *Store) Dimension() int { return s.index.Dim() }

// Len returns the number of entries
func (s *Store) Len() int { return len(s.ids) }

// Add inserts chunks with their vectors. Every vector gets a docstore entry.
func (s *Store) Add(chunks []models.Chunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("%d chunks but %d vectors", len(chunks), len(vecs))
	}
	for _, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("%w: chunk without id", models.ErrInvalidInput)
		}
		if _, dup := s.chunks[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chunk id %s", models.ErrInvalidInput, c.ID)
		}
	}
	if err := s.index.Add(vecs...); err != nil {
		return err
	}
	for _, c := range chunks {
		s.ids = append(s.ids, c.ID)
		s.chunks[c.ID] = c
	}
	return nil
}

// Chunks returns every chunk in insertion order
func (s *Store) Chunks() []models.Chunk {
	out := make([]models.Chunk, len(s.ids))
	for i, id := range s.ids {
		out[i] = s.chunks[id]
	}
	return out
}

// Chunk looks up a chunk by id
func (s *Store) Chunk(id string) (models.Chunk, bool) {
	c, ok := s.chunks[id]
	return c, ok
}

// Vector returns a copy of the stored vector for a chunk id
func (s *Store) Vector(id string) ([]float32, bool) {
	for pos, got := range s.ids {
		if got == id {
			return s.index.Vector(pos), true
		}
	}
	return nil, false
}

// Search returns the k nearest chunks with their stored vectors
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	neighbors, err := s.index.Search(query, k)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(neighbors))
	for i, n := range neighbors {
		hits[i] = Hit{
			Chunk:    s.chunks[s.ids[n.Pos]],
			Vector:   s.index.Vector(n.Pos),
			Distance: n.Distance,
		}
	}
	return hits, nil
}

// Keywords returns the BM25 side index, built on first use
func (s *Store) Keywords() (*KeywordIndex, error) {
	s.kwMu.Lock()
	defer s.kwMu.Unlock()
	if s.kw == nil && s.kwErr == nil {
		s.kw, s.kwErr = NewKeywordIndex(s.Chunks())
	}
	return s.kw, s.kwErr
}

// Close releases the keyword index if one was built. Only call it once no
// request can still be searching this store.
func (s *Store) Close() error {
	s.kwMu.Lock()
	defer s.kwMu.Unlock()
	if s.kw == nil {
		return nil
	}
	err := s.kw.Close()
	s.kw = nil
	s.kwErr = errStoreClosed
	return err
}

// Save writes the store under dir/name, replacing any previous copy
func (s *Store) Save(dir, name string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.MkdirTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	if err := s.writeFiles(tmp); err != nil {
		return err
	}

	target := filepath.Join(dir, name)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove previous index: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to move index into place: %w", err)
	}
	return nil
}

func (s *Store) writeFiles(dir string) error {
	f, err := os.Create(filepath.Join(dir, indexFile))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", indexFile, err)
	}
	if err := writeVectors(f, s.index); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", indexFile, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	ds := docstore{
		Version:   docstoreVersion,
		Model:     s.model,
		Dimension: s.index.Dim(),
		IDs:       s.ids,
		Chunks:    s.Chunks(),
	}
	if ds.IDs == nil {
		ds.IDs = []string{}
	}
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal docstore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, docstoreFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", docstoreFile, err)
	}
	return nil
}

// Exists reports whether a persisted index is present under dir/name
func Exists(dir, name string) bool {
	for _, f := range []string{indexFile, docstoreFile} {
		if _, err := os.Stat(filepath.Join(dir, name, f)); err != nil {
			return false
		}
	}
	return true
}

// Load reads a persisted store. A missing index yields models.ErrIndexNotFound;
// an index built with another embedding model yields models.ErrIndexModelMismatch.
// An empty model skips the model check.
func Load(dir, name, model string) (*Store, error) {
	root := filepath.Join(dir, name)

	data, err := os.ReadFile(filepath.Join(root, docstoreFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrIndexNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read docstore: %w", err)
	}

	var ds docstore
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("%w: docstore: %v", ErrCorruptIndex, err)
	}
	if model != "" && ds.Model != model {
		return nil, fmt.Errorf("%w: index %q uses %s, configured model is %s", models.ErrIndexModelMismatch, name, ds.Model, model)
	}

	f, err := os.Open(filepath.Join(root, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrIndexNotFound, root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat index: %w", err)
	}

	flat, err := readVectors(f, info.Size())
	if err != nil {
		return nil, err
	}
	if flat.Len() != len(ds.IDs) || len(ds.IDs) != len(ds.Chunks) {
		return nil, fmt.Errorf("%w: %d vectors, %d ids, %d chunks", ErrCorruptIndex, flat.Len(), len(ds.IDs), len(ds.Chunks))
	}
	if flat.Len() > 0 && flat.Dim() != ds.Dimension {
		return nil, fmt.Errorf("%w: index dimension %d, docstore says %d", ErrCorruptIndex, flat.Dim(), ds.Dimension)
	}
	if flat.Len() == 0 {
		flat.dim = ds.Dimension
	}

	s := &Store{
		model:  ds.Model,
		index:  flat,
		ids:    ds.IDs,
		chunks: make(map[string]models.Chunk, len(ds.Chunks)),
	}
	for i, c := range ds.Chunks {
		if c.ID != ds.IDs[i] {
			return nil, fmt.Errorf("%w: docstore order mismatch at %d", ErrCorruptIndex, i)
		}
		s.chunks[c.ID] = c
	}
	return s, nil
}
