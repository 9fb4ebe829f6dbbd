package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all routing tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("payrails", "1.0.0")
	client := NewPayrailsClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolRoutePayment, h.HandleRoutePayment)
	s.AddTool(ToolAssessRisk, h.HandleAssessRisk)
	s.AddTool(ToolProcessorHealth, h.HandleProcessorHealth)
	s.AddTool(ToolRecordTransaction, h.HandleRecordTransaction)
	s.AddTool(ToolListTransactions, h.HandleListTransactions)

	return s
}
