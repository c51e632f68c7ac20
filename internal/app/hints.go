// ABOUTME: Troubleshooting hints shown next to errors by the CLI, web UI and MCP tools
// ABOUTME: Hints are keyed on the sentinel errors from internal/models
package app

import (
	"errors"
	"fmt"

	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/index"
	"github.com/harper/cenly/internal/ingest"
	"github.com/harper/cenly/internal/models"
)

// Hint returns a short remedy for err, or "" when there is nothing useful to add
func Hint(cfg *config.Config, err error) string {
	if cfg == nil {
		cfg = config.Default()
	}
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrBackendUnavailable):
		return fmt.Sprintf("Is Ollama running? Start it with `ollama serve`, then check the models are pulled: `ollama pull %s` and `ollama pull %s` (server: %s)",
			cfg.LLM.ChatModel, cfg.LLM.EmbeddingModel, cfg.Ollama.BaseURL)
	case errors.Is(err, models.ErrIndexModelMismatch):
		return fmt.Sprintf("The saved index was built with another embedding model. Rebuild it with `cenly ingest --rebuild` to use %s.", cfg.LLM.EmbeddingModel)
	case errors.Is(err, models.ErrDimensionMismatch), errors.Is(err, index.ErrCorruptIndex):
		return "The saved index cannot be used. Rebuild it with `cenly ingest --rebuild`."
	case errors.Is(err, ingest.ErrPDFToolNotFound):
		return "Install poppler-utils to index PDF files."
	}
	return ""
}
