// ABOUTME: Assistant answers a question within a conversation thread
// ABOUTME: History → retrieval → generation → persist both turns → trace
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/cenly/internal/logger"
	"github.com/harper/cenly/internal/metrics"
	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/storage"
	"github.com/harper/cenly/internal/trace"
)

// Reply is an answer together with the passages it was grounded on
type Reply struct {
	ThreadID    string
	Answer      string
	Sources     []models.SearchResult
	Placeholder bool
}

// Assistant wires retrieval, generation and conversation persistence
type Assistant struct {
	retriever    *Retriever
	generator    *AnswerGenerator
	store        storage.ConversationStore
	tracer       trace.Tracer
	metrics      *metrics.Metrics
	historyLimit int
	logger       *log.Logger
}

// AssistantOption configures an Assistant
type AssistantOption func(*Assistant)

// WithTracer records each exchange as a run
func WithTracer(t trace.Tracer) AssistantOption {
	return func(a *Assistant) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithMetrics records request outcomes
func WithMetrics(m *metrics.Metrics) AssistantOption {
	return func(a *Assistant) { a.metrics = m }
}

// WithHistoryLimit bounds how many prior messages reach the prompt; 0 means all
func WithHistoryLimit(n int) AssistantOption {
	return func(a *Assistant) {
		if n >= 0 {
			a.historyLimit = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) AssistantOption {
	return func(a *Assistant) { a.logger = logger.OrDiscard(l) }
}

// NewAssistant creates an Assistant
func NewAssistant(r *Retriever, g *AnswerGenerator, store storage.ConversationStore, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		retriever: r,
		generator: g,
		store:     store,
		tracer:    trace.Noop{},
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chat answers prompt within threadID and returns the answer text
func (a *Assistant) Chat(ctx context.Context, prompt, threadID string) (string, error) {
	reply, err := a.Respond(ctx, prompt, threadID)
	if err != nil {
		return "", err
	}
	return reply.Answer, nil
}

// Respond answers prompt within threadID. Prior turns of the thread are threaded
// into the prompt; on success the question and answer are appended to the thread.
// A blank completion is replaced by models.EmptyResponsePlaceholder. Any other
// failure returns before anything is persisted.
func (a *Assistant) Respond(ctx context.Context, prompt, threadID string) (*Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: prompt cannot be empty", models.ErrInvalidInput)
	}
	if strings.TrimSpace(threadID) == "" {
		return nil, fmt.Errorf("%w: session id cannot be empty", models.ErrInvalidInput)
	}

	start := time.Now()
	reply, err := a.respond(ctx, prompt, threadID)
	end := time.Now()

	a.metrics.ObserveChat(end.Sub(start), err)
	run := trace.Run{
		Name:      "cenly.chat",
		ThreadID:  threadID,
		Inputs:    map[string]any{"question": prompt},
		Error:     err,
		StartTime: start,
		EndTime:   end,
	}
	if reply != nil {
		run.Outputs = map[string]any{"answer": reply.Answer, "sources": len(reply.Sources)}
	}
	a.tracer.Record(run)

	if err != nil {
		a.logger.Error("chat failed", "thread", threadID, "err", err)
		return nil, err
	}
	return reply, nil
}

func (a *Assistant) respond(ctx context.Context, prompt, threadID string) (*Reply, error) {
	history, err := a.store.History(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	history = limitHistory(history, a.historyLimit)
	a.logTranscript(threadID, history)

	results, err := a.retriever.Retrieve(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}
	a.metrics.ObserveRetrieval(len(results))

	reply := &Reply{ThreadID: threadID, Sources: results}
	answer, err := a.generator.Generate(ctx, JoinContext(results), prompt, history)
	switch {
	case errors.Is(err, models.ErrEmptyResponse):
		a.logger.Warn("model returned an empty response", "thread", threadID)
		a.metrics.EmptyResponse()
		answer = models.EmptyResponsePlaceholder
		reply.Placeholder = true
	case err != nil:
		return nil, fmt.Errorf("generating answer: %w", err)
	}
	reply.Answer = answer

	err = a.store.Append(ctx, threadID,
		models.NewMessage(models.RoleHuman, prompt),
		models.NewMessage(models.RoleAI, answer),
	)
	if err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}

	a.logger.Debug("answered", "thread", threadID, "sources", len(results), "chars", len(answer))
	return reply, nil
}

// History returns the stored messages of a thread
func (a *Assistant) History(ctx context.Context, threadID string) ([]models.Message, error) {
	return a.store.History(ctx, threadID)
}

// Retriever exposes the retriever for search-only callers
func (a *Assistant) Retriever() *Retriever {
	return a.retriever
}

func (a *Assistant) logTranscript(threadID string, history []models.Message) {
	if a.logger.GetLevel() > log.DebugLevel {
		return
	}
	a.logger.Debug("conversation so far", "thread", threadID, "messages", len(history))
	for _, m := range history {
		a.logger.Debug(fmt.Sprintf("[%s] %s", m.Role, m.Content))
	}
}

func limitHistory(history []models.Message, limit int) []models.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
