// ABOUTME: End-to-end tests running CLI commands against a fake Ollama server
// ABOUTME: Each test gets its own config file, document folder, index and session database

package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/cenly/internal/llm/llmtest"
	"github.com/harper/cenly/internal/models"
)

var testDocs = map[string]string{
	"revenue.txt":   "Q3 revenue increased 12% compared to Q2, driven by online sales growth",
	"inventory.txt": "Inventory count for warehouse B shows 1200 units of stock",
	"party.txt":     "Office holiday party is scheduled for December 15 in the main lobby",
}

type cliEnv struct {
	srv    *llmtest.Server
	dir    string
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	srv := llmtest.NewServer(t)
	dir := t.TempDir()

	docs := filepath.Join(dir, "mock_data")
	if err := os.MkdirAll(docs, 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range testDocs {
		if err := os.WriteFile(filepath.Join(docs, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := fmt.Sprintf(`ollama:
  base_url: %s
llm:
  max_retries: 0
docs:
  dir: %s
index:
  dir: %s
session:
  db_path: %s
`, srv.URL, docs, filepath.Join(dir, "indexes"), filepath.Join(dir, "chat_history.db"))

	path := filepath.Join(dir, "cenly.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return &cliEnv{srv: srv, dir: dir, config: path}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--quiet", "--config", e.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	if err != nil {
		t.Fatalf("cenly %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestAskCmd(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.SetReply(func(llmtest.ChatRequest) string { return "Revenue grew 12% in Q3." })

	out := env.mustRun(t, "ask", "What's", "our", "sales", "trend?")
	if strings.TrimSpace(out) != "Revenue grew 12% in Q3." {
		t.Errorf("ask output = %q", out)
	}

	chats := env.srv.Chats()
	last := chats[len(chats)-1].Messages
	if got := last[len(last)-1].Content; !strings.HasSuffix(got, "Question: What's our sales trend?") {
		t.Errorf("prompt = %q", got)
	}

	out = env.mustRun(t, "--format", "json", "history")
	var msgs []models.Message
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("history json: %v\n%s", err, out)
	}
	if len(msgs) != 2 || msgs[0].Role != models.RoleHuman || msgs[1].Role != models.RoleAI {
		t.Errorf("history = %+v", msgs)
	}
}

func TestAskCmd_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "--format", "json", "ask", "--session", "q3", "What's our sales trend?")
	var got askOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("ask json: %v\n%s", err, out)
	}
	if got.SessionID != "q3" {
		t.Errorf("session = %q, want q3", got.SessionID)
	}
	if len(got.Sources) == 0 || !strings.Contains(got.Sources[0].Source, "revenue.txt") {
		t.Errorf("sources = %+v", got.Sources)
	}
}

func TestAskCmd_BackendUnavailable(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.FailChat(true)

	_, err := env.run(t, "ask", "What's our sales trend?")
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	if !strings.Contains(Hint(err), "ollama serve") {
		t.Errorf("hint = %q", Hint(err))
	}
}

func TestIngestCmd(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "ingest")
	for _, want := range []string{"Files:", "Documents:", "Chunks:"} {
		if !strings.Contains(out, want) {
			t.Errorf("first ingest output missing %q:\n%s", want, out)
		}
	}

	out = env.mustRun(t, "ingest")
	if !strings.Contains(out, "loaded existing index") {
		t.Errorf("second ingest should reuse the index:\n%s", out)
	}

	out = env.mustRun(t, "--format", "json", "ingest", "--rebuild")
	var got ingestOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("ingest json: %v\n%s", err, out)
	}
	if !got.Rebuilt || got.Entries != 3 || got.Documents != 3 || got.Dimension != llmtest.Dim {
		t.Errorf("ingest = %+v", got)
	}
}

func TestIngestCmd_Dir(t *testing.T) {
	env := newCLIEnv(t)
	other := filepath.Join(env.dir, "reports")
	if err := os.MkdirAll(other, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(other, "one.md"), []byte("Marketing expenses were 4000"), 0644); err != nil {
		t.Fatal(err)
	}

	out := env.mustRun(t, "--format", "json", "ingest", "--dir", other, "--rebuild")
	var got ingestOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("ingest json: %v\n%s", err, out)
	}
	if got.Entries != 1 {
		t.Errorf("entries = %d, want 1", got.Entries)
	}
}

func TestSearchCmd(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "--format", "json", "search", "--k", "2", "--type", "similarity", "What's our sales trend?")
	var results []models.SearchResult
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("search json: %v\n%s", err, out)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !strings.Contains(results[0].Chunk.Text, "Q3 revenue increased 12%") {
		t.Errorf("top result = %q", results[0].Chunk.Text)
	}
	if len(env.srv.Chats()) != 0 {
		t.Error("search must not call the chat model")
	}

	out = env.mustRun(t, "search", "warehouse stock")
	if !strings.Contains(out, "RANK") || !strings.Contains(out, "inventory.txt") {
		t.Errorf("table output:\n%s", out)
	}
}

func TestSearchCmd_InvalidFlags(t *testing.T) {
	env := newCLIEnv(t)
	for _, args := range [][]string{
		{"search", "--k", "0", "sales"},
		{"search", "--lambda", "1.5", "sales"},
		{"search", "--type", "fuzzy", "sales"},
	} {
		if _, err := env.run(t, args...); err == nil {
			t.Errorf("cenly %v should fail", args)
		}
	}
}

func TestHistoryCmds(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "ask", "--session", "alpha", "What's our sales trend?")
	env.mustRun(t, "ask", "--session", "beta", "How much stock is left?")

	out := env.mustRun(t, "--format", "json", "history", "list")
	var threads []models.ThreadInfo
	if err := json.Unmarshal([]byte(out), &threads); err != nil {
		t.Fatalf("list json: %v\n%s", err, out)
	}
	if len(threads) != 2 {
		t.Fatalf("threads = %d, want 2", len(threads))
	}

	exported := filepath.Join(env.dir, "alpha.yaml")
	env.mustRun(t, "history", "export", "alpha", "--format", "yaml", "--output", exported)
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "thread_id: alpha") || !strings.Contains(string(data), "What's our sales trend?") {
		t.Errorf("export:\n%s", data)
	}

	out = env.mustRun(t, "history", "export", "alpha", "--format", "md")
	if !strings.Contains(out, "# Conversation alpha") {
		t.Errorf("markdown export:\n%s", out)
	}

	if _, err := env.run(t, "history", "export", "alpha", "--format", "pdf"); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("unknown export format err = %v", err)
	}

	env.mustRun(t, "history", "clear", "alpha")
	out = env.mustRun(t, "--format", "json", "history", "alpha")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("cleared history = %s", out)
	}
}

func TestHistorySyncCmd_RequiresCharm(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run(t, "history", "sync")
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("sync on sqlite err = %v, want ErrInvalidInput", err)
	}
}

func TestStatusCmd(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "status")
	for _, want := range []string{"Ollama:", "ok", "gemma3:1b", "not built", "sqlite"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	env.srv.Close()
	_, err := env.run(t, "status")
	if !errors.Is(err, models.ErrBackendUnavailable) {
		t.Errorf("err = %v, want ErrBackendUnavailable", err)
	}
}

func TestEvalCmd(t *testing.T) {
	env := newCLIEnv(t)
	env.srv.SetReply(func(llmtest.ChatRequest) string { return "Revenue grew 12% in Q3." })

	cases := filepath.Join(env.dir, "cases.json")
	if err := os.WriteFile(cases, []byte(`[
		{"id": "sales", "question": "What's our sales trend?", "expected_in_response": ["12%"], "expected_context": ["Q3 revenue"]},
		{"id": "party", "question": "When is the holiday party?", "expected_context": ["December 15"], "retrieval_only": true}
	]`), 0644); err != nil {
		t.Fatal(err)
	}
	results := filepath.Join(env.dir, "results.json")

	out := env.mustRun(t, "eval", cases, "--output", results)
	if !strings.Contains(out, "PASS") {
		t.Errorf("eval output:\n%s", out)
	}
	if _, err := os.Stat(results); err != nil {
		t.Errorf("results file: %v", err)
	}

	env.srv.SetReply(func(llmtest.ChatRequest) string { return "I don't know." })
	if _, err := env.run(t, "eval", cases); err == nil {
		t.Error("eval should fail when a case fails")
	}
}
