package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/agentflow/internal/engine"
	"github.com/rendis/agentflow/internal/store"
	"github.com/rendis/agentflow/internal/validation"
)

// ServerDeps holds the dependencies for creating an AgentflowServer.
type ServerDeps struct {
	Orchestrator *engine.Orchestrator
	Store        store.Store // optional: enables persistence-backed tools
	Validator    *validation.JSONSchemaValidator
	Logger       *slog.Logger
}

// AgentflowServer wraps an MCP server with agentflow-specific tool handlers.
type AgentflowServer struct {
	orchestrator *engine.Orchestrator
	store        store.Store
	validator    *validation.JSONSchemaValidator
	logger       *slog.Logger
	mcpServer    *server.MCPServer
}

// NewAgentflowServer creates a new AgentflowServer with all tools registered.
func NewAgentflowServer(deps ServerDeps) *AgentflowServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &AgentflowServer{
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		validator:    deps.Validator,
		logger:       logger,
	}

	mcpSrv := server.NewMCPServer(
		"agentflow",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Agentflow orchestrates multi-agent workflows. Use agentflow.run to execute a workflow, agentflow.define to register one, agentflow.agents to list available agents, agentflow.schedule to set up recurring runs, and agentflow.query to inspect workflows, history, runs, jobs, and stats."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *AgentflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *AgentflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *AgentflowServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: agentsTool(), Handler: s.handleAgents},
		{Tool: scheduleTool(), Handler: s.handleSchedule},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("agentflow.run",
		mcp.WithDescription("Execute a registered workflow"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Name of the workflow to execute")),
		mcp.WithObject("input", mcp.Description("Input data for the workflow")),
	)
}

func defineTool() mcp.Tool {
	return mcp.NewTool("agentflow.define",
		mcp.WithDescription("Register a workflow definition"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Workflow name")),
		mcp.WithObject("definition", mcp.Required(), mcp.Description("Workflow definition object with a tasks array")),
		mcp.WithObject("input_schema", mcp.Description("JSON Schema used to validate run inputs")),
		mcp.WithBoolean("persist", mcp.Description("Persist the definition across restarts (default: true when storage is available)")),
	)
}

func agentsTool() mcp.Tool {
	return mcp.NewTool("agentflow.agents",
		mcp.WithDescription("List the registered agents"),
	)
}

func scheduleTool() mcp.Tool {
	return mcp.NewTool("agentflow.schedule",
		mcp.WithDescription("Schedule a recurring workflow run"),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Name of the workflow to run")),
		mcp.WithString("cron", mcp.Required(), mcp.Description("Cron expression (minute hour dom month dow)")),
		mcp.WithObject("input", mcp.Description("Input data passed to every scheduled run")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("agentflow.query",
		mcp.WithDescription("Query workflows, run history, archived runs, scheduled jobs, or statistics"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("workflows", "history", "runs", "jobs", "stats"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (workflow, status, since, limit)")),
	)
}
