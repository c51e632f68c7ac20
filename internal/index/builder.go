// ABOUTME: Build embeds chunks in batches and assembles an in-memory Store
// ABOUTME: The dimension comes from a live probe of the embedding model
package index

import (
	"context"
	"fmt"

	"github.com/harper/cenly/internal/models"
)

// Embedder produces vectors for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension(ctx context.Context) (int, error)
	Model() string
}

// DefaultBatchSize is the number of chunks embedded per request
const DefaultBatchSize = 32

// Build embeds chunks and returns a store ready to save. Zero chunks yield an empty store.
func Build(ctx context.Context, embedder Embedder, chunks []models.Chunk, batchSize int) (*Store, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	dim, err := embedder.Dimension(ctx)
	if err != nil {
		return nil, err
	}

	store := NewStore(embedder.Model(), dim)
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks %d-%d: %w", start, end-1, err)
		}
		if err := store.Add(batch, vecs); err != nil {
			return nil, fmt.Errorf("adding chunks %d-%d: %w", start, end-1, err)
		}
	}
	return store, nil
}
