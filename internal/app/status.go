// ABOUTME: Status reports model server reachability, index state and session backend
// ABOUTME: Shared by the status command, the web sidebar and the MCP server
package app

import (
	"context"

	"github.com/harper/cenly/internal/index"
)

// BackendStatus describes the model server
type BackendStatus struct {
	URL            string   `json:"url"`
	Reachable      bool     `json:"reachable"`
	Error          string   `json:"error,omitempty"`
	Models         []string `json:"models,omitempty"`
	ChatModel      string   `json:"chat_model"`
	EmbeddingModel string   `json:"embedding_model"`
}

// IndexStatus describes the persisted and active vector index
type IndexStatus struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Exists     bool   `json:"exists"`
	Loaded     bool   `json:"loaded"`
	Entries    int    `json:"entries"`
	Dimension  int    `json:"dimension,omitempty"`
	SearchType string `json:"search_type"`
}

// Status is a point-in-time health summary
type Status struct {
	Backend        BackendStatus `json:"backend"`
	Index          IndexStatus   `json:"index"`
	SessionBackend string        `json:"session_backend"`
	DocsDir        string        `json:"docs_dir"`
}

// Status checks the backend and inspects the index without building it
func (a *App) Status(ctx context.Context) Status {
	cfg := a.Config
	st := Status{
		Backend: BackendStatus{
			URL:            cfg.Ollama.BaseURL,
			ChatModel:      cfg.LLM.ChatModel,
			EmbeddingModel: cfg.LLM.EmbeddingModel,
		},
		Index: IndexStatus{
			Name:       cfg.Index.Name,
			Path:       cfg.IndexPath(),
			Exists:     index.Exists(cfg.Index.Dir, cfg.Index.Name),
			SearchType: a.Retriever.Defaults().SearchType,
		},
		SessionBackend: cfg.Session.Backend,
		DocsDir:        cfg.Docs.Dir,
	}

	names, err := a.LLM.Models(ctx)
	if err != nil {
		st.Backend.Error = err.Error()
	} else {
		st.Backend.Reachable = true
		st.Backend.Models = names
	}

	if s := a.Index.Loaded(); s != nil {
		st.Index.Loaded = true
		st.Index.Entries = s.Len()
		st.Index.Dimension = s.Dimension()
	} else if st.Index.Exists {
		if s, err := index.Load(cfg.Index.Dir, cfg.Index.Name, cfg.LLM.EmbeddingModel); err == nil {
			st.Index.Entries = s.Len()
			st.Index.Dimension = s.Dimension()
			_ = s.Close()
		}
	}
	return st
}

// HasModel reports whether name is among the models the backend listed
func (b BackendStatus) HasModel(name string) bool {
	for _, m := range b.Models {
		if m == name || m == name+":latest" {
			return true
		}
	}
	return false
}
