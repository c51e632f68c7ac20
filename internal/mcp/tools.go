// ABOUTME: MCP tool definitions and registration for the Cenly server
// ABOUTME: Exposes ask, retrieval, session history and index rebuild as tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/cenly/internal/app"
)

// ServerName is the name advertised during the MCP handshake
const ServerName = "Cenly Business Assistant"

// NewServer builds an MCP server with every Cenly tool registered
func NewServer(a *app.App, version string) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer(ServerName, version)
	RegisterTools(server, a)
	return server
}

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, a *app.App) *Handlers {
	handlers := &Handlers{app: a}

	server.AddTool(mcp.Tool{
		Name:        "ask",
		Description: "Ask the business assistant a question. The answer is grounded in the indexed company documents and the exchange is saved to the session.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "The question to ask",
				},
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Conversation session to continue (default: first)",
					"default":     DefaultSession,
				},
			},
			Required: []string{"message"},
		},
	}, handlers.Ask)

	server.AddTool(mcp.Tool{
		Name:        "retrieve_context",
		Description: "Return the document passages most relevant to a query without generating an answer.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"k": map[string]interface{}{
					"type":        "number",
					"description": "Number of passages to return (default: configured retriever k)",
				},
				"search_type": map[string]interface{}{
					"type":        "string",
					"description": "mmr, similarity or hybrid (default: configured search type)",
					"enum":        []string{"mmr", "similarity", "hybrid"},
				},
			},
			Required: []string{"query"},
		},
	}, handlers.RetrieveContext)

	server.AddTool(mcp.Tool{
		Name:        "get_session_history",
		Description: "Get the stored messages of a conversation session in order.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": map[string]interface{}{
					"type":        "string",
					"description": "Session ID to read",
				},
			},
			Required: []string{"session_id"},
		},
	}, handlers.GetSessionHistory)

	server.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List stored conversation sessions, most recently updated first.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.ListSessions)

	server.AddTool(mcp.Tool{
		Name:        "rebuild_index",
		Description: "Re-read the document directory, re-embed every chunk and replace the saved index.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.RebuildIndex)

	return handlers
}
