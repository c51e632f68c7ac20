// ABOUTME: Chunk is a bounded fragment of a document that gets embedded and indexed
// ABOUTME: Chunks are immutable once produced by the splitter
package models

import "unicode/utf8"

// Chunk is one entry of the vector index docstore
type Chunk struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Source     string            `json:"source"`
	Format     Format            `json:"format"`
	Position   int               `json:"position"`
	StartIndex int               `json:"start_index"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Len returns the chunk length in characters (runes)
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Text)
}

// Label returns a short human-readable origin such as "report.pdf (page=2)"
func (c Chunk) Label() string {
	d := Document{Metadata: c.Metadata}
	if loc := d.Locator(); loc != "" {
		return c.Source + " (" + loc + ")"
	}
	return c.Source
}
