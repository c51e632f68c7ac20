// ABOUTME: In-memory BM25 keyword index over chunk text, backed by bleve
// ABOUTME: Used by hybrid retrieval to fuse lexical hits with vector hits
package index

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/harper/cenly/internal/models"
)

// KeywordIndex wraps a memory-only bleve index keyed by chunk id
type KeywordIndex struct {
	idx bleve.Index
}

type keywordDoc struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// NewKeywordIndex indexes every chunk's text
func NewKeywordIndex(chunks []models.Chunk) (*KeywordIndex, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}

	batch := idx.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, keywordDoc{Text: c.Text, Source: c.Source}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to commit keyword batch: %w", err)
	}
	return &KeywordIndex{idx: idx}, nil
}

// Search returns up to n chunk ids ranked by BM25 score
func (k *KeywordIndex) Search(q string, n int) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" || n <= 0 {
		return nil, nil
	}

	// Match queries avoid query-string syntax errors on user punctuation
	query := bleve.NewMatchQuery(q)
	req := bleve.NewSearchRequestOptions(query, n, 0, false)
	res, err := k.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the bleve index
func (k *KeywordIndex) Close() error {
	return k.idx.Close()
}
