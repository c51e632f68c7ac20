// ABOUTME: Document is a loaded source file (or one page/sheet of it) before splitting
// ABOUTME: Format tags identify which loader produced the text
package models

// Format identifies the loader that produced a Document
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
)

// IsValid checks if the format is one of the known loaders
func (f Format) IsValid() bool {
	switch f {
	case FormatPDF, FormatXLSX, FormatCSV, FormatText:
		return true
	}
	return false
}

// Metadata keys attached to documents and carried onto their chunks
const (
	MetaPage  = "page"
	MetaSheet = "sheet"
)

// Document is read once during ingestion and not retained afterwards
type Document struct {
	Source   string            `json:"source"`
	Format   Format            `json:"format"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Locator returns the page or sheet label that distinguishes documents from the same file
func (d Document) Locator() string {
	if p, ok := d.Metadata[MetaPage]; ok {
		return "page=" + p
	}
	if s, ok := d.Metadata[MetaSheet]; ok {
		return "sheet=" + s
	}
	return ""
}
