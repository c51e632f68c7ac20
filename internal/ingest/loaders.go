// ABOUTME: Format loaders turning PDF, XLSX, CSV and plain text files into Documents
// ABOUTME: PDF text comes from pdftotext through an injectable CommandRunner
package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/harper/cenly/internal/models"
)

// ErrPDFToolNotFound means pdftotext is not installed
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// Loader reads one file into one or more Documents
type Loader func(ctx context.Context, path string) ([]models.Document, error)

// CommandRunner runs an external program and returns its stdout
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Run executes name with args
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

func defaultLoaders() map[string]Loader {
	return map[string]Loader{
		".pdf":  PDFLoader(ExecRunner{}),
		".xlsx": LoadXLSX,
		".csv":  LoadCSV,
		".txt":  LoadText,
		".md":   LoadText,
	}
}

// PDFLoader returns a loader producing one Document per non-blank page
func PDFLoader(r CommandRunner) Loader {
	return func(ctx context.Context, path string) ([]models.Document, error) {
		out, err := r.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
		if err != nil {
			return nil, err
		}
		// pdftotext ends every page with a form feed
		pages := strings.Split(string(out), "\f")
		var docs []models.Document
		for i, page := range pages {
			if strings.TrimSpace(page) == "" {
				continue
			}
			docs = append(docs, models.Document{
				Source:   path,
				Format:   models.FormatPDF,
				Content:  strings.ToValidUTF8(page, ""),
				Metadata: map[string]string{models.MetaPage: strconv.Itoa(i + 1)},
			})
		}
		return docs, nil
	}
}

// LoadXLSX produces one Document per non-empty sheet with cells tab-joined
func LoadXLSX(_ context.Context, path string) ([]models.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	var docs []models.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		docs = append(docs, models.Document{
			Source:   path,
			Format:   models.FormatXLSX,
			Content:  strings.Join(lines, "\n"),
			Metadata: map[string]string{models.MetaSheet: sheet},
		})
	}
	return docs, nil
}

// LoadCSV renders each record as "header: value" lines, records separated by blank lines
func LoadCSV(_ context.Context, path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var records []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		var b strings.Builder
		for i, v := range rec {
			name := "column" + strconv.Itoa(i+1)
			if i < len(header) && strings.TrimSpace(header[i]) != "" {
				name = strings.TrimSpace(header[i])
			}
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(name + ": " + strings.TrimSpace(v))
		}
		if b.Len() > 0 {
			records = append(records, b.String())
		}
	}
	if len(records) == 0 {
		return nil, nil
	}
	return []models.Document{{
		Source:  path,
		Format:  models.FormatCSV,
		Content: strings.Join(records, "\n\n"),
	}}, nil
}

// LoadText reads the file verbatim
func LoadText(_ context.Context, path string) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.ToValidUTF8(string(data), "")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return []models.Document{{Source: path, Format: models.FormatText, Content: text}}, nil
}
