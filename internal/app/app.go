// ABOUTME: App is the runtime context constructed once per process and passed to every surface
// ABOUTME: It owns the model client, index manager, conversation store, tracer and metrics
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/core"
	"github.com/harper/cenly/internal/index"
	"github.com/harper/cenly/internal/ingest"
	"github.com/harper/cenly/internal/llm"
	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/metrics"
	"github.com/harper/cenly/internal/storage"
	"github.com/harper/cenly/internal/trace"
)

// App holds every long-lived component
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	LLM       *llm.OllamaClient
	Ingestor  *ingest.Ingestor
	Index     *index.Manager
	Retriever *core.Retriever
	Generator *core.AnswerGenerator
	Assistant *core.Assistant
	Store     storage.ConversationStore
	Tracer    trace.Tracer
	Metrics   *metrics.Metrics

	mu         sync.Mutex
	lastReport *ingest.Report
}

// Option customises construction
type Option func(*options)

type options struct {
	ingestOpts []ingest.Option
	metrics    *metrics.Metrics
}

// WithIngestOptions passes extra options to the document ingestor
func WithIngestOptions(opts ...ingest.Option) Option {
	return func(o *options) { o.ingestOpts = append(o.ingestOpts, opts...) }
}

// WithMetrics shares a metrics registry instead of creating one
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New wires the application. Nothing contacts the model server until first use.
func New(ctx context.Context, cfg *config.Config, l *log.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger.OrDiscard(l),
		Metrics: o.metrics,
	}
	if a.Metrics == nil {
		a.Metrics = metrics.New()
	}

	client, err := llm.NewOllamaClient(llm.ConfigFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	a.LLM = client

	generator := core.NewAnswerGenerator(client)
	if path := cfg.LLM.SystemPromptFile; path != "" {
		prompt, err := core.LoadSystemPrompt(path)
		if err != nil {
			return nil, err
		}
		generator.WithSystemPrompt(prompt)
	}
	a.Generator = generator

	a.Ingestor = ingest.FromConfig(cfg, a.Logger)
	for _, opt := range o.ingestOpts {
		opt(a.Ingestor)
	}

	a.Index = index.NewManager(cfg.Index.Dir, cfg.Index.Name, cfg.LLM.EmbeddingModel, a.BuildIndex, a.Logger)
	a.Retriever = core.NewRetriever(client, meteredStores{a.Index, a.Metrics}, core.RetrieveOptionsFrom(cfg.Retriever), a.Logger)

	store, err := storage.Open(ctx, cfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Tracer = trace.New(cfg.Trace, a.Logger)

	a.Assistant = core.NewAssistant(a.Retriever, a.Generator, a.Store,
		core.WithTracer(a.Tracer),
		core.WithMetrics(a.Metrics),
		core.WithHistoryLimit(cfg.Session.HistoryLimit),
		core.WithLogger(a.Logger),
	)
	return a, nil
}

// BuildIndex ingests the document directory and embeds every chunk. It is the
// index manager's build function, so callers normally go through Rebuild.
func (a *App) BuildIndex(ctx context.Context) (*index.Store, error) {
	report, err := a.Ingestor.Load(ctx, a.Config.Docs.Dir)
	if err != nil {
		a.Metrics.IndexBuilt(0, err)
		return nil, err
	}
	a.setReport(report)
	a.Metrics.Ingested(report.Documents, len(report.Failures))
	for _, f := range report.Failures {
		a.Logger.Warn("document not indexed", "path", f.Path, "err", f.Err)
	}

	built, err := index.Build(ctx, a.LLM, report.Chunks, a.Config.LLM.EmbedBatchSize)
	a.Metrics.IndexBuilt(len(report.Chunks), err)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("index built", "entries", built.Len(), "dim", built.Dimension(), "model", built.Model())
	return built, nil
}

// Rebuild forces a fresh index from the document directory and makes it active
func (a *App) Rebuild(ctx context.Context) (*index.Store, *ingest.Report, error) {
	s, err := a.Index.Rebuild(ctx)
	if err != nil {
		return nil, a.LastReport(), err
	}
	a.Metrics.IndexLoaded(s.Len())
	return s, a.LastReport(), nil
}

// LastReport returns the report of the most recent ingestion, or nil
func (a *App) LastReport() *ingest.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReport
}

func (a *App) setReport(r *ingest.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastReport = r
}

// Watch rebuilds the index whenever supported documents change, until ctx is done
func (a *App) Watch(ctx context.Context) error {
	dir := a.Config.Docs.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating document directory: %w", err)
	}
	w, err := ingest.NewWatcher(dir, a.Ingestor.Accepts, a.Config.Docs.Debounce, func(ctx context.Context) {
		s, _, err := a.Rebuild(ctx)
		if err != nil {
			a.Logger.Error("rebuild after document change failed", "err", err)
			return
		}
		a.Logger.Info("index rebuilt after document change", "entries", s.Len())
	}, a.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	return w.Run(ctx)
}

// Close releases the store, tracer and index
func (a *App) Close() error {
	var errs []error
	if a.Tracer != nil {
		errs = append(errs, a.Tracer.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Index != nil {
		errs = append(errs, a.Index.Close())
	}
	return errors.Join(errs...)
}

// meteredStores reports the active index size whenever the retriever asks for it
type meteredStores struct {
	manager *index.Manager
	metrics *metrics.Metrics
}

func (m meteredStores) Get(ctx context.Context) (*index.Store, error) {
	s, err := m.manager.Get(ctx)
	if err != nil {
		return nil, err
	}
	m.metrics.IndexLoaded(s.Len())
	return s, nil
}
