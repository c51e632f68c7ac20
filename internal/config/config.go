// ABOUTME: Centralized configuration for the Cenly assistant
// ABOUTME: Loads defaults, an optional cenly.{yaml,toml,json} file and CENLY_* env vars via viper
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Search types understood by the retriever
const (
	SearchMMR        = "mmr"
	SearchSimilarity = "similarity"
	SearchHybrid     = "hybrid"
)

// Session store backends
const (
	BackendSQLite = "sqlite"
	BackendCharm  = "charm"
	BackendRedis  = "redis"
)

// Config holds all configuration for the assistant
type Config struct {
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Docs      DocsConfig      `mapstructure:"docs"`
	Index     IndexConfig     `mapstructure:"index"`
	Splitter  SplitterConfig  `mapstructure:"splitter"`
	Retriever RetrieverConfig `mapstructure:"retriever"`
	Session   SessionConfig   `mapstructure:"session"`
	Charm     CharmConfig     `mapstructure:"charm"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Server    ServerConfig    `mapstructure:"server"`
	Trace     TraceConfig     `mapstructure:"trace"`
	Log       LogConfig       `mapstructure:"log"`
}

// OllamaConfig locates the local model server
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// LLMConfig selects models and request behaviour
type LLMConfig struct {
	ChatModel        string        `mapstructure:"chat_model"`
	EmbeddingModel   string        `mapstructure:"embedding_model"`
	Temperature      float64       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
	EmbedTimeout     time.Duration `mapstructure:"embed_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	EmbedBatchSize   int           `mapstructure:"embed_batch_size"`
	SystemPromptFile string        `mapstructure:"system_prompt_file"`
}

// DocsConfig describes where source documents live. TextExtensions are read
// verbatim as plain text in addition to Extensions.
type DocsConfig struct {
	Dir            string        `mapstructure:"dir"`
	Extensions     []string      `mapstructure:"extensions"`
	TextExtensions []string      `mapstructure:"text_extensions"`
	Debounce       time.Duration `mapstructure:"debounce"`
}

// IndexConfig names the persisted vector index
type IndexConfig struct {
	Dir  string `mapstructure:"dir"`
	Name string `mapstructure:"name"`
}

// SplitterConfig bounds chunk size and overlap, in characters
type SplitterConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// RetrieverConfig controls how passages are selected
type RetrieverConfig struct {
	SearchType string  `mapstructure:"search_type"`
	K          int     `mapstructure:"k"`
	FetchK     int     `mapstructure:"fetch_k"`
	LambdaMult float64 `mapstructure:"lambda_mult"`
}

// SessionConfig selects the conversation store
type SessionConfig struct {
	Backend      string `mapstructure:"backend"`
	DBPath       string `mapstructure:"db_path"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

// CharmConfig configures the charm kv session backend
type CharmConfig struct {
	Host     string `mapstructure:"host"`
	DBName   string `mapstructure:"db"`
	AutoSync bool   `mapstructure:"auto_sync"`
}

// RedisConfig configures the redis session backend
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServerConfig configures the web UI
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// TraceConfig configures optional run tracing
type TraceConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"api_key"`
	Project  string `mapstructure:"project"`
	Endpoint string `mapstructure:"endpoint"`
}

// Active reports whether tracing should post runs
func (t TraceConfig) Active() bool {
	return t.Enabled && t.APIKey != ""
}

// LogConfig sets the default log level
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultDataDir returns the data directory following the XDG spec
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "cenly")
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "cenly")
}

func defaultConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "cenly")
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "cenly")
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.api_key", "ollama")

	v.SetDefault("llm.chat_model", "gemma3:1b")
	v.SetDefault("llm.embedding_model", "nomic-embed-text")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.embed_timeout", 30*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.embed_batch_size", 32)
	v.SetDefault("llm.system_prompt_file", "")

	v.SetDefault("docs.dir", "mock_data")
	v.SetDefault("docs.extensions", []string{".pdf", ".xlsx", ".csv", ".txt", ".md"})
	v.SetDefault("docs.text_extensions", []string{})
	v.SetDefault("docs.debounce", 2*time.Second)

	v.SetDefault("index.dir", filepath.Join(dataDir, "indexes"))
	v.SetDefault("index.name", "Financial data")

	v.SetDefault("splitter.chunk_size", 1000)
	v.SetDefault("splitter.chunk_overlap", 100)

	v.SetDefault("retriever.search_type", SearchMMR)
	v.SetDefault("retriever.k", 3)
	v.SetDefault("retriever.fetch_k", 10)
	v.SetDefault("retriever.lambda_mult", 1.0)

	v.SetDefault("session.backend", BackendSQLite)
	v.SetDefault("session.db_path", filepath.Join(dataDir, "chat_history.db"))
	v.SetDefault("session.history_limit", 0)

	v.SetDefault("charm.host", "cloud.charm.sh")
	v.SetDefault("charm.db", "cenly")
	v.SetDefault("charm.auto_sync", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Duration(0))

	v.SetDefault("server.addr", ":8501")

	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.api_key", "")
	v.SetDefault("trace.project", "cenly")
	v.SetDefault("trace.endpoint", "https://api.smith.langchain.com")

	v.SetDefault("log.level", "info")
}

// Default returns the built-in configuration without consulting files or the environment
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return &cfg
}

// Load reads configuration. An explicit path must exist; otherwise cenly.* is
// searched in the working directory and $XDG_CONFIG_HOME/cenly and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cenly")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
	}

	v.SetEnvPrefix("CENLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Tracing keys keep their conventional unprefixed names
	_ = v.BindEnv("trace.enabled", "CENLY_TRACE_ENABLED", "LANGSMITH_TRACING", "LANGCHAIN_TRACING_V2")
	_ = v.BindEnv("trace.api_key", "CENLY_TRACE_API_KEY", "LANGSMITH_API_KEY", "LANGCHAIN_API_KEY")
	_ = v.BindEnv("trace.project", "CENLY_TRACE_PROJECT", "LANGSMITH_PROJECT", "LANGCHAIN_PROJECT")
	_ = v.BindEnv("trace.endpoint", "CENLY_TRACE_ENDPOINT", "LANGSMITH_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.normalize()

	return &cfg, cfg.Validate()
}

func (c *Config) normalize() {
	c.Ollama.BaseURL = strings.TrimRight(c.Ollama.BaseURL, "/")
	c.Retriever.SearchType = strings.ToLower(strings.TrimSpace(c.Retriever.SearchType))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	for i, ext := range c.Docs.Extensions {
		c.Docs.Extensions[i] = normalizeExt(ext)
	}
	for i, ext := range c.Docs.TextExtensions {
		c.Docs.TextExtensions[i] = normalizeExt(ext)
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Validate checks ranges and enumerations
func (c *Config) Validate() error {
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	if c.LLM.ChatModel == "" || c.LLM.EmbeddingModel == "" {
		return fmt.Errorf("llm.chat_model and llm.embedding_model are required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be 0-2, got %f", c.LLM.Temperature)
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 10 {
		return fmt.Errorf("llm.max_retries must be 0-10, got %d", c.LLM.MaxRetries)
	}
	if c.LLM.EmbedBatchSize <= 0 {
		return fmt.Errorf("llm.embed_batch_size must be positive, got %d", c.LLM.EmbedBatchSize)
	}
	if c.Index.Name == "" || strings.ContainsAny(c.Index.Name, `/\`) {
		return fmt.Errorf("index.name must be a plain directory name, got %q", c.Index.Name)
	}
	if c.Splitter.ChunkSize <= 0 {
		return fmt.Errorf("splitter.chunk_size must be positive, got %d", c.Splitter.ChunkSize)
	}
	if c.Splitter.ChunkOverlap < 0 || c.Splitter.ChunkOverlap >= c.Splitter.ChunkSize {
		return fmt.Errorf("splitter.chunk_overlap must be 0-%d, got %d", c.Splitter.ChunkSize-1, c.Splitter.ChunkOverlap)
	}
	switch c.Retriever.SearchType {
	case SearchMMR, SearchSimilarity, SearchHybrid:
	default:
		return fmt.Errorf("retriever.search_type must be mmr, similarity or hybrid, got %q", c.Retriever.SearchType)
	}
	if c.Retriever.K < 1 {
		return fmt.Errorf("retriever.k must be at least 1, got %d", c.Retriever.K)
	}
	if c.Retriever.FetchK < c.Retriever.K {
		return fmt.Errorf("retriever.fetch_k (%d) must be >= retriever.k (%d)", c.Retriever.FetchK, c.Retriever.K)
	}
	if c.Retriever.LambdaMult < 0 || c.Retriever.LambdaMult > 1 {
		return fmt.Errorf("retriever.lambda_mult must be 0-1, got %f", c.Retriever.LambdaMult)
	}
	switch c.Session.Backend {
	case BackendSQLite, BackendCharm, BackendRedis:
	default:
		return fmt.Errorf("session.backend must be sqlite, charm or redis, got %q", c.Session.Backend)
	}
	if c.Session.HistoryLimit < 0 {
		return fmt.Errorf("session.history_limit must not be negative, got %d", c.Session.HistoryLimit)
	}
	return nil
}

// IndexPath returns the directory holding the persisted index
func (c *Config) IndexPath() string {
	return filepath.Join(c.Index.Dir, c.Index.Name)
}
