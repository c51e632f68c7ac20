// ABOUTME: Ingestor walks the document directory and turns supported files into chunks
// ABOUTME: Per-file failures are collected in the Report; only a failed walk aborts
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/core"
	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/models"
)

// DefaultExtensions are the file types loaded when none are configured
var DefaultExtensions = []string{".pdf", ".xlsx", ".csv", ".txt", ".md"}

// Report summarises one ingestion run
type Report struct {
	Files     int
	Documents int
	Chunks    []models.Chunk
	Failures  []*models.IngestionError
}

// Ingestor loads documents from disk and splits them
type Ingestor struct {
	splitter   *core.ChunkEngine
	extensions map[string]bool
	loaders    map[string]Loader
	logger     *log.Logger
}

// Option configures an Ingestor
type Option func(*Ingestor)

// WithExtensions restricts ingestion to the given extensions
func WithExtensions(exts []string) Option {
	return func(in *Ingestor) {
		if len(exts) == 0 {
			return
		}
		in.extensions = extensionSet(exts)
	}
}

// WithRunner sets the command runner used by the PDF loader
func WithRunner(r CommandRunner) Option {
	return func(in *Ingestor) {
		if r != nil {
			in.loaders[".pdf"] = PDFLoader(r)
		}
	}
}

// WithLoader registers a loader for an extension, replacing any existing one,
// and accepts files with that extension
func WithLoader(ext string, l Loader) Option {
	return func(in *Ingestor) {
		ext = normalizeExt(ext)
		if ext == "" || l == nil {
			return
		}
		in.loaders[ext] = l
		in.extensions[ext] = true
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(in *Ingestor) { in.logger = logger.OrDiscard(l) }
}

// New creates an Ingestor that splits with splitter
func New(splitter *core.ChunkEngine, opts ...Option) *Ingestor {
	if splitter == nil {
		splitter = core.NewChunkEngine()
	}
	in := &Ingestor{
		splitter:   splitter,
		extensions: extensionSet(DefaultExtensions),
		loaders:    defaultLoaders(),
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// FromConfig creates an Ingestor using the docs and splitter settings
func FromConfig(cfg *config.Config, l *log.Logger) *Ingestor {
	splitter := core.NewChunkEngine(
		core.WithChunkSize(cfg.Splitter.ChunkSize),
		core.WithOverlap(cfg.Splitter.ChunkOverlap),
	)
	opts := []Option{WithExtensions(cfg.Docs.Extensions), WithLogger(l)}
	for _, ext := range cfg.Docs.TextExtensions {
		opts = append(opts, WithLoader(ext, LoadText))
	}
	return New(splitter, opts...)
}

// Extensions returns the accepted extensions in no particular order
func (in *Ingestor) Extensions() []string {
	out := make([]string, 0, len(in.extensions))
	for ext := range in.extensions {
		out = append(out, ext)
	}
	return out
}

// Accepts reports whether path has an ingestible extension and is not hidden
func (in *Ingestor) Accepts(path string) bool {
	if isHidden(filepath.Base(path)) {
		return false
	}
	return in.extensions[strings.ToLower(filepath.Ext(path))]
}

// Load walks root in lexical order, loads every accepted file and splits the result.
// A missing root yields an empty report.
func (in *Ingestor) Load(ctx context.Context, root string) (*Report, error) {
	report := &Report{}

	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		in.logger.Warn("document directory does not exist, index will be empty", "dir", root)
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", models.ErrInvalidInput, root)
	}

	var docs []models.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			report.Failures = append(report.Failures, &models.IngestionError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && isHidden(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !in.Accepts(path) {
			return nil
		}

		report.Files++
		loaded, err := in.loadFile(ctx, path)
		if err != nil {
			in.logger.Warn("skipping file", "path", path, "err", err)
			report.Failures = append(report.Failures, &models.IngestionError{Path: path, Err: err})
			return nil
		}
		in.logger.Debug("loaded", "path", path, "documents", len(loaded))
		docs = append(docs, loaded...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	report.Documents = len(docs)
	report.Chunks = in.splitter.SplitDocuments(docs)
	in.logger.Info("ingested documents",
		"dir", root,
		"files", report.Files,
		"documents", report.Documents,
		"chunks", len(report.Chunks),
		"failures", len(report.Failures))
	return report, nil
}

func (in *Ingestor) loadFile(ctx context.Context, path string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	loader, ok := in.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, ext)
	}
	return loader(ctx, filepath.ToSlash(path))
}

func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if ext = normalizeExt(ext); ext != "" {
			set[ext] = true
		}
	}
	return set
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func isHidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".") && name != ".."
}
