package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	core "taskmarket-backend/core/marketplace"
	store "taskmarket-backend/storage/marketplace"
)

// Server wraps the mcp-go server with the marketplace engine and the
// event archive.
type Server struct {
	mcpServer     *server.MCPServer
	engine        *core.Engine
	archive       store.Archive
	defaultVoting time.Duration
}

// NewServer creates an MCP server exposing every marketplace operation as
// a tool. defaultVoting is the dispute voting period used when a caller
// does not pass one.
func NewServer(engine *core.Engine, archive store.Archive, defaultVoting time.Duration) *Server {
	mcpServer := server.NewMCPServer(
		"Task Marketplace MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	if defaultVoting <= 0 {
		defaultVoting = 72 * time.Hour
	}

	s := &Server{
		mcpServer:     mcpServer,
		engine:        engine,
		archive:       archive,
		defaultVoting: defaultVoting,
	}
	s.registerTools()
	return s
}

// GetMCPServer returns the underlying MCP server for transport setup.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	// Task lifecycle
	s.registerCreateTaskTool()
	s.registerClaimTaskTool()
	s.registerSubmitWorkTool()
	s.registerApproveTaskTool()
	s.registerRejectTaskTool()
	s.registerCancelTaskTool()

	// Verification
	s.registerVerifyWorkTool()

	// Disputes
	s.registerOpenDisputeTool()
	s.registerCastDisputeVoteTool()
	s.registerResolveDisputeTool()
	s.registerGetDisputeTool()

	// Lookups
	s.registerGetTaskTool()
	s.registerListTasksTool()
	s.registerTaskHistoryTool()
	s.registerStakeOfTool()
	s.registerTreasuryStatusTool()
}

// resultJSON renders a tool result as indented JSON.
func resultJSON(label string, v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err))
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s:\n\n%s", label, data))
}

// argString extracts a required string argument.
func argString(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// argUint64 extracts a required numeric argument as uint64. JSON numbers
// arrive as float64.
func argUint64(args map[string]any, key string) (uint64, error) {
	v, ok := args[key].(float64)
	if !ok || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number", key)
	}
	return uint64(v), nil
}

// argInt64 extracts a required numeric argument as int64.
func argInt64(args map[string]any, key string) (int64, error) {
	v, ok := args[key].(float64)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return int64(v), nil
}

// argBool extracts a required boolean argument.
func argBool(args map[string]any, key string) (bool, error) {
	v, ok := args[key].(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return v, nil
}
