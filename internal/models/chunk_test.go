// ABOUTME: Tests for Chunk and Document helpers
// ABOUTME: Verifies rune length and origin labels across formats
package models

import "testing"

func TestChunk_Len(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "ascii", text: "Q3 revenue", want: 10},
		{name: "multibyte counts runes", text: "café €12", want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Chunk{Text: tt.text}
			if got := c.Len(); got != tt.want {
				t.Errorf("Len() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChunk_Label(t *testing.T) {
	tests := []struct {
		name  string
		chunk Chunk
		want  string
	}{
		{
			name:  "plain text file",
			chunk: Chunk{Source: "notes.txt"},
			want:  "notes.txt",
		},
		{
			name:  "pdf page",
			chunk: Chunk{Source: "report.pdf", Metadata: map[string]string{MetaPage: "2"}},
			want:  "report.pdf (page=2)",
		},
		{
			name:  "spreadsheet sheet",
			chunk: Chunk{Source: "sales.xlsx", Metadata: map[string]string{MetaSheet: "Q3"}},
			want:  "sales.xlsx (sheet=Q3)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chunk.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat_IsValid(t *testing.T) {
	tests := []struct {
		format Format
		want   bool
	}{
		{FormatPDF, true},
		{FormatXLSX, true},
		{FormatCSV, true},
		{FormatText, true},
		{Format(""), false},
		{Format("docx"), false},
		{Format("PDF"), false},
	}

	for _, tt := range tests {
		if got := tt.format.IsValid(); got != tt.want {
			t.Errorf("Format(%q).IsValid() = %v, want %v", tt.format, got, tt.want)
		}
	}
}
