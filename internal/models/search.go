// ABOUTME: SearchResult is a retrieved chunk with its distance and ranking score
// ABOUTME: Results are ordered by Rank, starting at 1
package models

// SearchResult pairs a chunk with how it was ranked
type SearchResult struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}
