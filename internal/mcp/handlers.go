// ABOUTME: MCP tool handler implementations for the Cenly server
// ABOUTME: Failures become tool error results carrying a troubleshooting hint
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/cenly/internal/app"
	"github.com/harper/cenly/internal/config"
	"github.com/harper/cenly/internal/models"
)

// DefaultSession is used by ask when no session_id is given
const DefaultSession = "first"

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	app *app.App
}

type passage struct {
	Rank   int     `json:"rank"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func passages(results []models.SearchResult) []passage {
	out := make([]passage, 0, len(results))
	for _, r := range results {
		out = append(out, passage{Rank: r.Rank, Source: r.Chunk.Label(), Score: r.Score, Text: r.Chunk.Text})
	}
	return out
}

// Ask handles the ask tool
func (h *Handlers) Ask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}
	sessionID := request.GetString("session_id", DefaultSession)

	reply, err := h.app.Assistant.Respond(ctx, message, sessionID)
	if err != nil {
		return h.failure("ask failed", err), nil
	}

	return jsonResult(map[string]interface{}{
		"session_id":  reply.ThreadID,
		"answer":      reply.Answer,
		"placeholder": reply.Placeholder,
		"sources":     passages(reply.Sources),
	})
}

// RetrieveContext handles the retrieve_context tool
func (h *Handlers) RetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	opts := h.app.Retriever.Defaults()
	if k := request.GetInt("k", 0); k > 0 {
		opts.K = k
	}
	if st := request.GetString("search_type", ""); st != "" {
		switch st {
		case config.SearchMMR, config.SearchSimilarity, config.SearchHybrid:
			opts.SearchType = st
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown search_type %q", st)), nil
		}
	}

	results, err := h.app.Retriever.RetrieveWith(ctx, query, opts)
	if err != nil {
		return h.failure("retrieval failed", err), nil
	}

	return jsonResult(map[string]interface{}{
		"query":       query,
		"search_type": opts.SearchType,
		"passages":    passages(results),
	})
}

// GetSessionHistory handles the get_session_history tool
func (h *Handlers) GetSessionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id argument is required and must be a string"), nil
	}

	msgs, err := h.app.Store.History(ctx, sessionID)
	if err != nil {
		return h.failure("failed to read session", err), nil
	}

	messages := make([]map[string]interface{}, 0, len(msgs))
	for _, m := range msgs {
		messages = append(messages, map[string]interface{}{
			"role":       string(m.Role),
			"content":    m.Content,
			"created_at": m.CreatedAt.Format(time.RFC3339),
		})
	}

	return jsonResult(map[string]interface{}{
		"session_id": sessionID,
		"messages":   messages,
		"count":      len(messages),
	})
}

// ListSessions handles the list_sessions tool
func (h *Handlers) ListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	threads, err := h.app.Store.Threads(ctx)
	if err != nil {
		return h.failure("failed to list sessions", err), nil
	}

	sessions := make([]map[string]interface{}, 0, len(threads))
	for _, t := range threads {
		sessions = append(sessions, map[string]interface{}{
			"session_id":    t.ID,
			"message_count": t.MessageCount,
			"updated_at":    t.UpdatedAt.Format(time.RFC3339),
		})
	}

	return jsonResult(map[string]interface{}{
		"sessions": sessions,
	})
}

// RebuildIndex handles the rebuild_index tool
func (h *Handlers) RebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, report, err := h.app.Rebuild(ctx)
	if err != nil {
		return h.failure("rebuild failed", err), nil
	}

	response := map[string]interface{}{
		"entries":   s.Len(),
		"dimension": s.Dimension(),
		"model":     s.Model(),
	}
	if report != nil {
		failures := make([]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			failures = append(failures, f.Error())
		}
		response["files"] = report.Files
		response["documents"] = report.Documents
		response["failures"] = failures
	}
	return jsonResult(response)
}

func (h *Handlers) failure(what string, err error) *mcp.CallToolResult {
	msg := fmt.Sprintf("%s: %v", what, err)
	if hint := app.Hint(h.app.Config, err); hint != "" {
		msg += "\n" + hint
	}
	return mcp.NewToolResultError(msg)
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
