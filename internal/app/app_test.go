package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/llm/llmtest"
	"github.com/harper/cenly/internal/models"
)

var mockDocs = map[string]string{
	"notes.txt":     "Office holiday party is scheduled for December 15 in the main lobby",
	"inventory.txt": "Inventory count for warehouse B shows 1200 units of stock",
	"revenue.txt":   "Q3 revenue increased 12% compared to Q2, driven by online sales growth",
	"expenses.csv":  "category,amount\nMarketing expenses,4000\nTravel costs,1500\n",
}

func testConfig(t *testing.T, srv *llmtest.Server, docs map[string]string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	docsDir := filepath.Join(dir, "mock_data")
	for name, content := range docs {
		require.NoError(t, os.MkdirAll(docsDir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(docsDir, name), []byte(content), 0644))
	}

	cfg := config.Default()
	cfg.Ollama.BaseURL = srv.URL
	cfg.LLM.MaxRetries = 0
	cfg.Docs.Dir = docsDir
	cfg.Index.Dir = filepath.Join(dir, "indexes")
	cfg.Session.DBPath = filepath.Join(dir, "chat_history.db")
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func lastUserMessage(t *testing.T, srv *llmtest.Server) string {
	t.Helper()
	chats := srv.Chats()
	require.NotEmpty(t, chats)
	msgs := chats[len(chats)-1].Messages
	return msgs[len(msgs)-1].Content
}

func TestApp_ChatBuildsIndexOnFirstUse(t *testing.T) {
	srv := llmtest.NewServer(t)
	srv.SetReply(func(llmtest.ChatRequest) string { return "Sales rose 12% in Q3." })
	cfg := testConfig(t, srv, mockDocs)
	a := newApp(t, cfg)

	answer, err := a.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.NoError(t, err)
	assert.Equal(t, "Sales rose 12% in Q3.", answer)

	assert.DirExists(t, cfg.IndexPath())
	assert.Contains(t, lastUserMessage(t, srv), "Q3 revenue increased 12%")

	report := a.LastReport()
	require.NotNil(t, report)
	assert.Equal(t, 4, report.Documents)
	assert.Empty(t, report.Failures)

	chats := srv.Chats()
	assert.Equal(t, "gemma3:1b", chats[0].Model)
	assert.InDelta(t, 0.3, chats[0].Temperature, 1e-6)
	assert.Equal(t, "system", chats[0].Messages[0].Role)
}

func TestApp_SecondProcessLoadsSavedIndex(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, mockDocs)

	first := newApp(t, cfg)
	_, err := first.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.NoError(t, err)
	require.NoError(t, first.Close())
	embedded := len(srv.EmbedInputs())

	second := newApp(t, cfg)
	_, err = second.Assistant.Chat(context.Background(), "How does that compare to expenses?", "first")
	require.NoError(t, err)

	// only the new question is embedded; the index is loaded, not rebuilt
	assert.Len(t, srv.EmbedInputs(), embedded+1)
	assert.Nil(t, second.LastReport())

	// the session continues across processes
	chats := srv.Chats()
	msgs := chats[len(chats)-1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "What's our sales trend?", msgs[1].Content)
}

func TestApp_RebuildIsDeterministic(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, mockDocs)
	a := newApp(t, cfg)

	_, _, err := a.Rebuild(context.Background())
	require.NoError(t, err)
	firstBin, err := os.ReadFile(filepath.Join(cfg.IndexPath(), "index.bin"))
	require.NoError(t, err)
	firstDocs, err := os.ReadFile(filepath.Join(cfg.IndexPath(), "docstore.json"))
	require.NoError(t, err)

	s, report, err := a.Rebuild(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(report.Chunks), s.Len())

	secondBin, err := os.ReadFile(filepath.Join(cfg.IndexPath(), "index.bin"))
	require.NoError(t, err)
	secondDocs, err := os.ReadFile(filepath.Join(cfg.IndexPath(), "docstore.json"))
	require.NoError(t, err)

	assert.Equal(t, firstBin, secondBin)
	assert.Equal(t, firstDocs, secondDocs)
}

func TestApp_EmptyDocumentDirectory(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, nil)
	a := newApp(t, cfg)

	_, err := a.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.NoError(t, err)

	assert.Contains(t, lastUserMessage(t, srv), "Context: \nQuestion: What's our sales trend?")
	st := a.Status(context.Background())
	assert.True(t, st.Index.Exists)
	assert.Zero(t, st.Index.Entries)
}

func TestApp_BackendFailure(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, mockDocs)
	a := newApp(t, cfg)
	srv.FailChat(true)

	_, err := a.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.ErrorIs(t, err, models.ErrBackendUnavailable)

	msgs, err := a.Store.History(context.Background(), "first")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestApp_EmptyCompletionUsesPlaceholder(t *testing.T) {
	srv := llmtest.NewServer(t)
	srv.SetReply(func(llmtest.ChatRequest) string { return "" })
	a := newApp(t, testConfig(t, srv, mockDocs))

	answer, err := a.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.NoError(t, err)
	assert.Equal(t, models.EmptyResponsePlaceholder, answer)
}

func TestApp_ModelMismatch(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, mockDocs)
	a := newApp(t, cfg)
	_, _, err := a.Rebuild(context.Background())
	require.NoError(t, err)
	require.NoError(t, a.Close())

	cfg.LLM.EmbeddingModel = "mxbai-embed-large"
	b := newApp(t, cfg)
	_, err = b.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	assert.ErrorIs(t, err, models.ErrIndexModelMismatch)
}

func TestApp_Status(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, mockDocs)
	a := newApp(t, cfg)

	st := a.Status(context.Background())
	assert.True(t, st.Backend.Reachable)
	assert.True(t, st.Backend.HasModel("gemma3:1b"))
	assert.False(t, st.Index.Exists)
	assert.Equal(t, "sqlite", st.SessionBackend)
	assert.Equal(t, "mmr", st.Index.SearchType)

	_, _, err := a.Rebuild(context.Background())
	require.NoError(t, err)
	st = a.Status(context.Background())
	assert.True(t, st.Index.Loaded)
	assert.Equal(t, 4, st.Index.Entries)
	assert.Equal(t, llmtest.Dim, st.Index.Dimension)

	srv.Close()
	st = a.Status(context.Background())
	assert.False(t, st.Backend.Reachable)
	assert.NotEmpty(t, st.Backend.Error)
}

func TestApp_SystemPromptFile(t *testing.T) {
	srv := llmtest.NewServer(t)
	cfg := testConfig(t, srv, mockDocs)

	cfg.LLM.SystemPromptFile = filepath.Join(t.TempDir(), "missing.txt")
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("You are a terse CFO."), 0644))
	cfg.LLM.SystemPromptFile = path
	a := newApp(t, cfg)

	_, err = a.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.NoError(t, err)
	assert.Equal(t, "You are a terse CFO.", srv.Chats()[0].Messages[0].Content)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Retriever.K = 0
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)

	_, err = New(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestApp_MetricsRecorded(t *testing.T) {
	srv := llmtest.NewServer(t)
	a := newApp(t, testConfig(t, srv, mockDocs))

	_, err := a.Assistant.Chat(context.Background(), "What's our sales trend?", "first")
	require.NoError(t, err)

	families, err := a.Metrics.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	joined := strings.Join(names, ",")
	assert.Contains(t, joined, "cenly_chat_requests_total")
	assert.Contains(t, joined, "cenly_index_builds_total")
	assert.Contains(t, joined, "cenly_index_entries")
}

func TestHint(t *testing.T) {
	cfg := config.Default()

	assert.Empty(t, Hint(cfg, nil))
	assert.Empty(t, Hint(cfg, models.ErrInvalidInput))
	assert.Contains(t, Hint(cfg, models.ErrBackendUnavailable), "ollama serve")
	assert.Contains(t, Hint(nil, models.ErrBackendUnavailable), "ollama pull gemma3:1b")
	assert.Contains(t, Hint(cfg, models.ErrIndexModelMismatch), "cenly ingest --rebuild")
}
