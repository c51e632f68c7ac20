// ABOUTME: Tests for centralized configuration system
// ABOUTME: Verifies defaults, config files, env overrides and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points XDG dirs at a temp dir and clears env that could leak into Load
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "CENLY_") || strings.HasPrefix(key, "LANGSMITH_") || strings.HasPrefix(key, "LANGCHAIN_") {
			t.Setenv(key, "")
		}
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %s, want http://localhost:11434", cfg.Ollama.BaseURL)
	}
	if cfg.LLM.ChatModel != "gemma3:1b" {
		t.Errorf("LLM.ChatModel = %s, want gemma3:1b", cfg.LLM.ChatModel)
	}
	if cfg.LLM.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("LLM.EmbeddingModel = %s, want nomic-embed-text", cfg.LLM.EmbeddingModel)
	}
	if cfg.LLM.Temperature != 0.3 {
		t.Errorf("LLM.Temperature = %f, want 0.3", cfg.LLM.Temperature)
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Errorf("LLM.Timeout = %v, want 2m", cfg.LLM.Timeout)
	}
	if cfg.LLM.MaxRetries != 3 {
		t.Errorf("LLM.MaxRetries = %d, want 3", cfg.LLM.MaxRetries)
	}
	if cfg.Splitter.ChunkSize != 1000 || cfg.Splitter.ChunkOverlap != 100 {
		t.Errorf("Splitter = %+v, want 1000/100", cfg.Splitter)
	}
	if cfg.Retriever.SearchType != SearchMMR {
		t.Errorf("Retriever.SearchType = %s, want mmr", cfg.Retriever.SearchType)
	}
	if cfg.Retriever.K != 3 || cfg.Retriever.FetchK != 10 || cfg.Retriever.LambdaMult != 1.0 {
		t.Errorf("Retriever = %+v, want k=3 fetch_k=10 lambda=1", cfg.Retriever)
	}
	if cfg.Index.Name != "Financial data" {
		t.Errorf("Index.Name = %q, want Financial data", cfg.Index.Name)
	}
	if want := filepath.Join(dir, "data", "cenly", "indexes"); cfg.Index.Dir != want {
		t.Errorf("Index.Dir = %s, want %s", cfg.Index.Dir, want)
	}
	if cfg.Session.Backend != BackendSQLite {
		t.Errorf("Session.Backend = %s, want sqlite", cfg.Session.Backend)
	}
	if len(cfg.Docs.Extensions) != 5 {
		t.Errorf("Docs.Extensions = %v, want 5 entries", cfg.Docs.Extensions)
	}
	if cfg.Trace.Active() {
		t.Error("Trace should be inactive without keys")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CENLY_OLLAMA_BASE_URL", "http://gpu-box:11434/")
	t.Setenv("CENLY_LLM_CHAT_MODEL", "llama3.2")
	t.Setenv("CENLY_LLM_TIMEOUT", "45s")
	t.Setenv("CENLY_RETRIEVER_SEARCH_TYPE", "Hybrid")
	t.Setenv("CENLY_RETRIEVER_LAMBDA_MULT", "0.5")
	t.Setenv("CENLY_DOCS_EXTENSIONS", "pdf,.TXT")
	t.Setenv("CENLY_DOCS_TEXT_EXTENSIONS", "LOG")
	t.Setenv("LANGSMITH_TRACING", "true")
	t.Setenv("LANGCHAIN_API_KEY", "ls-key")
	t.Setenv("LANGCHAIN_PROJECT", "cenly-dev")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Ollama.BaseURL != "http://gpu-box:11434" {
		t.Errorf("Ollama.BaseURL = %s, want trailing slash trimmed", cfg.Ollama.BaseURL)
	}
	if cfg.LLM.ChatModel != "llama3.2" {
		t.Errorf("LLM.ChatModel = %s, want llama3.2", cfg.LLM.ChatModel)
	}
	if cfg.LLM.Timeout != 45*time.Second {
		t.Errorf("LLM.Timeout = %v, want 45s", cfg.LLM.Timeout)
	}
	if cfg.Retriever.SearchType != SearchHybrid {
		t.Errorf("Retriever.SearchType = %s, want hybrid", cfg.Retriever.SearchType)
	}
	if cfg.Retriever.LambdaMult != 0.5 {
		t.Errorf("Retriever.LambdaMult = %f, want 0.5", cfg.Retriever.LambdaMult)
	}
	if got := strings.Join(cfg.Docs.Extensions, ","); got != ".pdf,.txt" {
		t.Errorf("Docs.Extensions = %s, want .pdf,.txt", got)
	}
	if got := strings.Join(cfg.Docs.TextExtensions, ","); got != ".log" {
		t.Errorf("Docs.TextExtensions = %s, want .log", got)
	}
	if !cfg.Trace.Active() {
		t.Error("Trace should be active with LANGSMITH_TRACING and LANGCHAIN_API_KEY")
	}
	if cfg.Trace.Project != "cenly-dev" {
		t.Errorf("Trace.Project = %s, want cenly-dev", cfg.Trace.Project)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "cenly.yaml")
	content := `
llm:
  chat_model: qwen2.5:3b
retriever:
  k: 5
  fetch_k: 20
session:
  backend: redis
redis:
  addr: cache:6379
  ttl: 24h
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LLM.ChatModel != "qwen2.5:3b" {
		t.Errorf("LLM.ChatModel = %s, want qwen2.5:3b", cfg.LLM.ChatModel)
	}
	if cfg.Retriever.K != 5 || cfg.Retriever.FetchK != 20 {
		t.Errorf("Retriever = %+v, want k=5 fetch_k=20", cfg.Retriever)
	}
	if cfg.Session.Backend != BackendRedis || cfg.Redis.Addr != "cache:6379" {
		t.Errorf("Session/Redis = %+v %+v", cfg.Session, cfg.Redis)
	}
	if cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("Redis.TTL = %v, want 24h", cfg.Redis.TTL)
	}
	// untouched keys keep defaults
	if cfg.LLM.EmbeddingModel != "nomic-embed-text" {
		t.Errorf("LLM.EmbeddingModel = %s, want default", cfg.LLM.EmbeddingModel)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	if _, err := Load(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("Load() with missing explicit file should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		isolate(t)
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"valid", func(*Config) {}, ""},
		{"overlap too large", func(c *Config) { c.Splitter.ChunkOverlap = 1000 }, "chunk_overlap"},
		{"negative overlap", func(c *Config) { c.Splitter.ChunkOverlap = -1 }, "chunk_overlap"},
		{"zero chunk size", func(c *Config) { c.Splitter.ChunkSize = 0 }, "chunk_size"},
		{"k zero", func(c *Config) { c.Retriever.K = 0 }, "retriever.k"},
		{"fetch_k below k", func(c *Config) { c.Retriever.FetchK = 2 }, "fetch_k"},
		{"lambda above one", func(c *Config) { c.Retriever.LambdaMult = 1.5 }, "lambda_mult"},
		{"unknown search type", func(c *Config) { c.Retriever.SearchType = "bm25" }, "search_type"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "postgres" }, "session.backend"},
		{"too many retries", func(c *Config) { c.LLM.MaxRetries = 11 }, "max_retries"},
		{"bad temperature", func(c *Config) { c.LLM.Temperature = 3 }, "temperature"},
		{"index name with slash", func(c *Config) { c.Index.Name = "a/b" }, "index.name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errSub == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.errSub)
			}
		})
	}
}

func TestIndexPath(t *testing.T) {
	cfg := &Config{Index: IndexConfig{Dir: "/tmp/idx", Name: "Financial data"}}
	if got := cfg.IndexPath(); got != filepath.Join("/tmp/idx", "Financial data") {
		t.Errorf("IndexPath() = %s", got)
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("CENLY_LLM_CHAT_MODEL", "ignored")

	cfg := Default()
	if cfg.LLM.ChatModel != "gemma3:1b" {
		t.Errorf("Default() should ignore the environment, got chat model %q", cfg.LLM.ChatModel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() should validate, got %v", err)
	}
}
