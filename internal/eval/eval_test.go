package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/cenly/internal/core"
	"github.com/harper/cenly/internal/models"
)

func TestFaithfulness(t *testing.T) {
	tests := []struct {
		name      string
		answer    string
		expected  []string
		forbidden []string
		want      float64
	}{
		{"all present", "Revenue rose 12% in Q3", []string{"12%", "q3"}, nil, 1.0},
		{"missing", "Revenue rose", []string{"12%"}, nil, 0.5},
		{"forbidden", "Revenue rose 12%, down 5%", []string{"12%"}, []string{"down"}, 0.5},
		{"both", "Revenue fell", []string{"12%"}, []string{"fell"}, 0.0},
		{"nothing required", "anything", nil, nil, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := Faithfulness(tt.answer, tt.expected, tt.forbidden)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, detail)
		})
	}
}

func TestContextRecall(t *testing.T) {
	passages := []string{"Q3 revenue increased 12%", "Inventory count for warehouse B"}

	got, _ := ContextRecall(passages, []string{"q3 revenue", "warehouse b"})
	assert.Equal(t, 1.0, got)

	got, detail := ContextRecall(passages, []string{"q3 revenue", "holiday party"})
	assert.Equal(t, 0.5, got)
	assert.Contains(t, detail, "holiday party")

	got, _ = ContextRecall(nil, nil)
	assert.Equal(t, 1.0, got)
}

func TestLoadCases(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "cases.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[
		{"id": "sales", "question": "What's our sales trend?", "expected_context": ["Q3 revenue"]},
		{"question": "Where is the party?", "retrieval_only": true}
	]`), 0644))
	cases, err := LoadCases(jsonPath)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "sales", cases[0].ID)
	assert.Equal(t, "case_2", cases[1].ID)
	assert.True(t, cases[1].RetrievalOnly)

	yamlPath := filepath.Join(dir, "cases.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: stock
  question: How much stock is in warehouse B?
  expected_in_response: ["1200"]
`), 0644))
	cases, err = LoadCases(yamlPath)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, []string{"1200"}, cases[0].ExpectedInResponse)
}

func TestLoadCases_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadCases(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	blank := filepath.Join(dir, "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte(`[{"id": "x", "question": " "}]`), 0644))
	_, err = LoadCases(blank)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`[{"id": "x", "question": "a"}, {"id": "x", "question": "b"}]`), 0644))
	_, err = LoadCases(dup)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0644))
	_, err = LoadCases(broken)
	assert.Error(t, err)
}

type fakeAssistant struct {
	answers  map[string]string
	passages map[string][]string
	err      error
	threads  []string
}

func (f *fakeAssistant) results(q string) []models.SearchResult {
	var out []models.SearchResult
	for i, p := range f.passages[q] {
		out = append(out, models.SearchResult{Chunk: models.Chunk{Text: p}, Rank: i + 1})
	}
	return out
}

func (f *fakeAssistant) Respond(_ context.Context, prompt, threadID string) (*core.Reply, error) {
	f.threads = append(f.threads, threadID)
	if f.err != nil {
		return nil, f.err
	}
	return &core.Reply{ThreadID: threadID, Answer: f.answers[prompt], Sources: f.results(prompt)}, nil
}

func (f *fakeAssistant) Retrieve(_ context.Context, query string) ([]models.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results(query), nil
}

func TestRunner_Run(t *testing.T) {
	fake := &fakeAssistant{
		answers: map[string]string{
			"What's our sales trend?": "Sales grew 12% in Q3.",
			"How much stock?":         "I don't know.",
		},
		passages: map[string][]string{
			"What's our sales trend?": {"Q3 revenue increased 12%"},
			"How much stock?":         {"Office holiday party"},
			"Where is the party?":     {"Office holiday party is in the main lobby"},
		},
	}
	cases := []Case{
		{ID: "sales", Question: "What's our sales trend?", ExpectedInResponse: []string{"12%"}, ExpectedContext: []string{"Q3 revenue"}},
		{ID: "stock", Question: "How much stock?", ExpectedInResponse: []string{"1200"}, ExpectedContext: []string{"warehouse"}},
		{ID: "party", Question: "Where is the party?", ExpectedContext: []string{"main lobby"}, RetrievalOnly: true},
	}

	s, err := NewRunner(fake, fake, "", nil).Run(context.Background(), cases)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)

	assert.Equal(t, StatusPass, s.Results[0].Status)
	assert.Equal(t, 1.0, s.Results[0].OverallScore)
	assert.Equal(t, StatusFail, s.Results[1].Status)
	assert.Equal(t, 0.25, s.Results[1].OverallScore)
	assert.Equal(t, StatusPass, s.Results[2].Status)
	assert.Empty(t, s.Results[2].Answer)
	assert.NotEmpty(t, s.Results[0].Duration)

	// generation cases get isolated sessions; retrieval-only cases never call the assistant
	assert.Equal(t, []string{"eval_sales", "eval_stock"}, fake.threads)

	var buf bytes.Buffer
	require.NoError(t, s.WriteJSON(&buf))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.EqualValues(t, 3, decoded["total_cases"])
}

func TestRunner_BackendErrorMarksCase(t *testing.T) {
	fake := &fakeAssistant{err: errors.New("connection refused")}
	s, err := NewRunner(fake, fake, "run_", nil).Run(context.Background(), []Case{{ID: "a", Question: "q"}})
	require.NoError(t, err)
	require.Len(t, s.Results, 1)
	assert.Equal(t, StatusError, s.Results[0].Status)
	assert.Contains(t, s.Results[0].Error, "connection refused")
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, []string{"run_a"}, fake.threads)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := &fakeAssistant{}
	_, err := NewRunner(fake, fake, "", nil).Run(ctx, []Case{{ID: "a", Question: "q"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fake.threads)
}
