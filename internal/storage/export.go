// ABOUTME: Export of a stored conversation thread
// ABOUTME: Supports JSON, YAML and Markdown transcripts
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harper/cenly/internal/models"
)

// Export formats
const (
	ExportJSON     = "json"
	ExportYAML     = "yaml"
	ExportMarkdown = "md"
)

// ExportData is the exportable form of one thread
type ExportData struct {
	Version    string          `yaml:"version" json:"version"`
	ExportedAt string          `yaml:"exported_at" json:"exported_at"`
	Tool       string          `yaml:"tool" json:"tool"`
	ThreadID   string          `yaml:"thread_id" json:"thread_id"`
	Messages   []ExportMessage `yaml:"messages" json:"messages"`
}

// ExportMessage represents a message for export
type ExportMessage struct {
	Role      string `yaml:"role" json:"role"`
	Content   string `yaml:"content" json:"content"`
	Timestamp string `yaml:"timestamp" json:"timestamp"`
}

// ExportThread reads a thread from the store
func ExportThread(ctx context.Context, store ConversationStore, threadID string) (*ExportData, error) {
	msgs, err := store.History(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}

	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "cenly",
		ThreadID:   threadID,
		Messages:   make([]ExportMessage, len(msgs)),
	}
	for i, m := range msgs {
		data.Messages[i] = ExportMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.CreatedAt.Format(time.RFC3339),
		}
	}
	return data, nil
}

// Write renders the export in the given format
func (d *ExportData) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case ExportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case ExportYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case ExportMarkdown, "markdown":
		return d.writeMarkdown(w)
	default:
		return fmt.Errorf("%w: unknown export format %q", models.ErrInvalidInput, format)
	}
}

func (d *ExportData) writeMarkdown(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversation %s\n\n", d.ThreadID)
	fmt.Fprintf(&b, "*Exported: %s*\n\n", d.ExportedAt)

	for _, m := range d.Messages {
		speaker := "You"
		if m.Role == string(models.RoleAI) {
			speaker = "Cenly"
		}
		fmt.Fprintf(&b, "**%s** (%s):\n\n%s\n\n---\n\n", speaker, m.Timestamp, m.Content)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
