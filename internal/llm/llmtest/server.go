// Package llmtest provides an in-process stand-in for the Ollama OpenAI-compatible API.
package llmtest

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode"
)

// Dim is the vector width produced by TopicEmbedding
const Dim = 16

// topics maps vocabulary onto shared axes so related words land near each other
var topics = map[string]int{
	"sales": 0, "revenue": 0, "trend": 0, "increased": 0, "growth": 0, "q3": 0, "income": 0,
	"inventory": 1, "stock": 1, "warehouse": 1, "units": 1,
	"holiday": 2, "party": 2, "office": 2, "lunch": 2,
	"expenses": 3, "cost": 3, "costs": 3, "spend": 3,
}

// TopicEmbedding is a deterministic embedding: topic words hit a shared axis,
// other words hash into the remaining axes with a small weight.
func TopicEmbedding(text string) []float32 {
	vec := make([]float32, Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if axis, ok := topics[w]; ok {
			vec[axis] += 1
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[4+int(h.Sum32()%uint32(Dim-4))] += 0.1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[Dim-1] = 1
		return vec
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}

// ChatRequest is the subset of a chat completion request the fake records
type ChatRequest struct {
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	Messages    []ChatMessage `json:"messages"`
}

// ChatMessage is one message of a recorded chat request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Server fakes /v1/embeddings, /v1/chat/completions and /v1/models
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	reply       func(ChatRequest) string
	embed       func(string) []float32
	failEmbed   int
	failChat    bool
	chats       []ChatRequest
	embedInputs []string
	models      []string
}

// NewServer starts a fake that replies "ok" and embeds with TopicEmbedding
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		reply:  func(ChatRequest) string { return "ok" },
		embed:  TopicEmbedding,
		models: []string{"gemma3:1b", "nomic-embed-text"},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", s.handleEmbeddings)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	mux.HandleFunc("/v1/models", s.handleModels)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// SetReply replaces the chat responder
func (s *Server) SetReply(fn func(ChatRequest) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// SetEmbed replaces the embedding function
func (s *Server) SetEmbed(fn func(string) []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embed = fn
}

// FailEmbeddings makes the next n embedding requests return 500
func (s *Server) FailEmbeddings(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failEmbed = n
}

// FailChat makes every chat request return 500 until reset
func (s *Server) FailChat(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failChat = fail
}

// Chats returns every chat request received so far
func (s *Server) Chats() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatRequest(nil), s.chats...)
}

// EmbedInputs returns every text embedded so far
func (s *Server) EmbedInputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.embedInputs...)
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input json.RawMessage `json:"input"`
		Model string          `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var inputs []string
	if err := json.Unmarshal(req.Input, &inputs); err != nil {
		var single string
		if err := json.Unmarshal(req.Input, &single); err != nil {
			writeError(w, http.StatusBadRequest, "input must be a string or list of strings")
			return
		}
		inputs = []string{single}
	}

	s.mu.Lock()
	if s.failEmbed > 0 {
		s.failEmbed--
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "embedding model crashed")
		return
	}
	embed := s.embed
	s.embedInputs = append(s.embedInputs, inputs...)
	s.mu.Unlock()

	data := make([]map[string]any, len(inputs))
	for i, in := range inputs {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": embed(in)}
	}
	writeJSON(w, map[string]any{"object": "list", "model": req.Model, "data": data})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.chats = append(s.chats, req)
	fail := s.failChat
	reply := s.reply
	s.mu.Unlock()

	if fail {
		writeError(w, http.StatusInternalServerError, "model runner stopped")
		return
	}

	writeJSON(w, map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   req.Model,
		"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": reply(req)}}},
	})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := append([]string(nil), s.models...)
	s.mu.Unlock()

	data := make([]map[string]any, len(names))
	for i, n := range names {
		data[i] = map[string]any{"id": n, "object": "model", "owned_by": "library"}
	}
	writeJSON(w, map[string]any{"object": "list", "data": data})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": msg, "type": "api_error"}})
}
