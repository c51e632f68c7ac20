// ABOUTME: ChunkEngine splits documents into overlapping chunks for embedding
// ABOUTME: Recursive split on paragraph → line → word → character boundaries
package core

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/harper/cenly/internal/models"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters
	DefaultChunkSize = 1000
	// DefaultChunkOverlap is the number of characters shared by neighbouring chunks
	DefaultChunkOverlap = 100
)

// defaultSeparators are tried in order; "" splits into single characters
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// ChunkEngine handles boundary-aware text chunking
type ChunkEngine struct {
	chunkSize  int
	overlap    int
	separators []string
}

// ChunkOption configures a ChunkEngine
type ChunkOption func(*ChunkEngine)

// WithChunkSize sets the chunk size in characters
func WithChunkSize(size int) ChunkOption {
	return func(ce *ChunkEngine) {
		if size > 0 {
			ce.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters
func WithOverlap(overlap int) ChunkOption {
	return func(ce *ChunkEngine) {
		if overlap >= 0 {
			ce.overlap = overlap
		}
	}
}

// NewChunkEngine creates a ChunkEngine with 1000/100 defaults
func NewChunkEngine(opts ...ChunkOption) *ChunkEngine {
	ce := &ChunkEngine{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: defaultSeparators,
	}
	for _, opt := range opts {
		opt(ce)
	}
	if ce.overlap >= ce.chunkSize {
		ce.overlap = 0
	}
	return ce
}

// ChunkSize returns the configured maximum chunk length
func (ce *ChunkEngine) ChunkSize() int { return ce.chunkSize }

// Overlap returns the configured overlap
func (ce *ChunkEngine) Overlap() int { return ce.overlap }

// SplitDocuments chunks every document, carrying source, format and metadata onto each chunk.
// Documents with only whitespace produce no chunks.
func (ce *ChunkEngine) SplitDocuments(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		texts := ce.SplitText(doc.Content)
		starts := startIndices(doc.Content, texts, ce.overlap)
		locator := doc.Locator()

		for i, text := range texts {
			chunks = append(chunks, models.Chunk{
				ID:         generateChunkID(doc.Source, locator, i, starts[i]),
				Text:       text,
				Source:     doc.Source,
				Format:     doc.Format,
				Position:   i,
				StartIndex: starts[i],
				Metadata:   maps.Clone(doc.Metadata),
			})
		}
	}
	return chunks
}

// SplitText splits text into chunks no longer than the chunk size, except where a
// single unsplittable run of characters already exceeds it
func (ce *ChunkEngine) SplitText(text string) []string {
	return ce.split(text, ce.separators)
}

func (ce *ChunkEngine) split(text string, separators []string) []string {
	// Use the first separator present in the text
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if utf8.RuneCountInString(piece) < ce.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, ce.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, ce.split(piece, next)...)
		}
	}
	if len(good) > 0 {
		final = append(final, ce.merge(good)...)
	}
	return final
}

// merge packs small pieces into chunks, retaining a tail of up to overlap
// characters from the previous chunk at the start of the next one
func (ce *ChunkEngine) merge(pieces []string) []string {
	var docs, current []string
	total := 0

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+n > ce.chunkSize && len(current) > 0 {
			if doc := joinPieces(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > ce.overlap || (total+n > ce.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := joinPieces(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func joinPieces(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeepingSeparator splits on sep and re-attaches it to the start of
// every piece after the first. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

// startIndices locates each chunk in the source text, in characters.
// The search for chunk i starts where chunk i-1 ended minus the overlap; -1 means not found.
func startIndices(text string, chunks []string, overlap int) []int {
	out := make([]int, len(chunks))
	index, prevLen := 0, 0
	for i, c := range chunks {
		offset := max(0, index+prevLen-overlap)
		index = runeIndexFrom(text, c, offset)
		out[i] = index
		prevLen = utf8.RuneCountInString(c)
	}
	return out
}

func runeIndexFrom(s, sub string, from int) int {
	b := len(s)
	n := 0
	for i := range s {
		if n == from {
			b = i
			break
		}
		n++
	}

	i := strings.Index(s[b:], sub)
	if i < 0 {
		return -1
	}
	return from + utf8.RuneCountInString(s[b:b+i])
}

// generateChunkID derives a stable chunk ID so rebuilds of unchanged documents match
func generateChunkID(source, locator string, position, start int) string {
	key := fmt.Sprintf("%s|%s|%d|%d", source, locator, position, start)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}
