// ABOUTME: OpenAI-compatible client for the local Ollama server (chat + embeddings)
// ABOUTME: Embeddings retry with backoff; chat completions are single attempt with a deadline
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/models"
	"github.com/harper/cenly/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is where a local Ollama listens
	DefaultBaseURL = "http://localhost:11434"
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gemma3:1b"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = "nomic-embed-text"

	// dimensionProbe is embedded once to discover the vector width
	dimensionProbe = "test"
)

// ClientConfig holds configuration for the Ollama client
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	Timeout        time.Duration
	EmbedTimeout   time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	HTTPClient     *http.Client
}

// DefaultConfig returns the default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        DefaultBaseURL,
		APIKey:         "ollama",
		ChatModel:      DefaultChatModel,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    0.3,
		Timeout:        120 * time.Second,
		EmbedTimeout:   30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

// ConfigFrom maps application config onto client config
func ConfigFrom(cfg *config.Config) *ClientConfig {
	return &ClientConfig{
		BaseURL:        cfg.Ollama.BaseURL,
		APIKey:         cfg.Ollama.APIKey,
		ChatModel:      cfg.LLM.ChatModel,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    float32(cfg.LLM.Temperature),
		Timeout:        cfg.LLM.Timeout,
		EmbedTimeout:   cfg.LLM.EmbedTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
		RetryDelay:     cfg.LLM.RetryDelay,
	}
}

// OllamaClient wraps the OpenAI API client pointed at Ollama's /v1 endpoint
type OllamaClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	temperature    float32
	timeout        time.Duration
	embedTimeout   time.Duration
	maxRetries     int
	retryDelay     time.Duration

	dimMu sync.Mutex
	dim   int
}

// NewOllamaClient creates a client with the given configuration
func NewOllamaClient(cfg *ClientConfig) (*OllamaClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	if cfg.ChatModel == "" || cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("chat and embedding models are required")
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Ollama ignores the key but the client always sends one
		apiKey = "ollama"
	}
	oc := openai.DefaultConfig(apiKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/v1"
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	return &OllamaClient{
		client:         openai.NewClientWithConfig(oc),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		timeout:        cfg.Timeout,
		embedTimeout:   cfg.EmbedTimeout,
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
	}, nil
}

// Model returns the embedding model name recorded alongside persisted indexes
func (c *OllamaClient) Model() string {
	return c.embeddingModel
}

// ChatModel returns the chat model name
func (c *OllamaClient) ChatModel() string {
	return c.chatModel
}

// Embed returns the embedding for a single text
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, retrying with backoff on failure
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := util.SleepContext(ctx, util.CalculateBackoff(c.retryDelay, attempt)); err != nil {
				return nil, err
			}
		}

		vecs, err := c.embedOnce(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)

		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	return nil, classify(fmt.Errorf("failed to generate embeddings after %d attempts: %w", c.maxRetries+1, lastErr))
}

func (c *OllamaClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := withTimeout(ctx, c.embedTimeout)
	defer cancel()

	resp, err := c.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimension embeds a probe string once and caches the vector width
func (c *OllamaClient) Dimension(ctx context.Context) (int, error) {
	c.dimMu.Lock()
	defer c.dimMu.Unlock()

	if c.dim > 0 {
		return c.dim, nil
	}
	vec, err := c.Embed(ctx, dimensionProbe)
	if err != nil {
		return 0, fmt.Errorf("probing embedding dimension: %w", err)
	}
	c.dim = len(vec)
	return c.dim, nil
}

// Chat submits the rendered conversation and returns the completion text.
// A blank completion returns models.ErrEmptyResponse.
func (c *OllamaClient) Chat(ctx context.Context, messages []models.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages to send", models.ErrInvalidInput)
	}

	reqCtx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    toOpenAIMessages(messages),
		Temperature: c.temperature,
	})
	if err != nil {
		return "", classify(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", models.ErrEmptyResponse
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", models.ErrEmptyResponse
	}
	return content, nil
}

// Models lists the models the server has pulled
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	reqCtx, cancel := withTimeout(ctx, 5*time.Second)
	defer cancel()

	list, err := c.client.ListModels(reqCtx)
	if err != nil {
		return nil, classify(fmt.Errorf("listing models: %w", err))
	}

	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.ID)
	}
	sort.Strings(names)
	return names, nil
}

// Ping checks that the server answers
func (c *OllamaClient) Ping(ctx context.Context) error {
	_, err := c.Models(ctx)
	return err
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case models.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case models.RoleAI:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// statusCode extracts the HTTP status from go-openai errors, 0 when there was no response
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// retryable reports whether another embedding attempt could succeed
func retryable(err error) bool {
	code := statusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// classify marks transport failures and server errors as ErrBackendUnavailable.
// Client errors such as an unknown model pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	code := statusCode(err)
	if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return err
	}
	return fmt.Errorf("%w: %w", models.ErrBackendUnavailable, err)
}
