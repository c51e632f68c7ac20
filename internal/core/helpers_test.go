package core

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/harper/cenly/internal/index"
	"github.com/harper/cenly/internal/llm/llmtest"
	"github.com/harper/cenly/internal/models"
)

// topicEmbedder embeds with llmtest.TopicEmbedding and counts calls
type topicEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return llmtest.TopicEmbedding(text), nil
}

func (e *topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = llmtest.TopicEmbedding(t)
	}
	return out, nil
}

func (e *topicEmbedder) Dimension(context.Context) (int, error) { return llmtest.Dim, nil }

func (e *topicEmbedder) Model() string { return "nomic-embed-text" }

func (e *topicEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// staticStores always returns the same store
type staticStores struct{ store *index.Store }

func (s staticStores) Get(context.Context) (*index.Store, error) { return s.store, nil }

var businessTexts = []string{
	"Office holiday party is scheduled for December 15 in the main lobby",
	"Inventory count for warehouse B shows 1200 units of stock",
	"Q3 revenue increased 12% compared to Q2, driven by online sales growth",
	"Marketing expenses and travel costs were reduced this quarter",
	"Team lunch on Friday at the office cafeteria",
}

func businessChunks() []models.Chunk {
	out := make([]models.Chunk, len(businessTexts))
	for i, t := range businessTexts {
		out[i] = models.Chunk{
			ID:       fmt.Sprintf("chunk-%d", i),
			Text:     t,
			Source:   "mock_data/notes.txt",
			Format:   models.FormatText,
			Position: i,
		}
	}
	return out
}

func buildStore(t *testing.T, chunks []models.Chunk) *index.Store {
	t.Helper()
	s, err := index.Build(context.Background(), &topicEmbedder{}, chunks, 0)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// recordingModel is a ChatModel that records every conversation it receives
type recordingModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	history [][]models.Message
}

func (m *recordingModel) Chat(_ context.Context, msgs []models.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, msgs)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *recordingModel) last() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return nil
	}
	return m.history[len(m.history)-1]
}
