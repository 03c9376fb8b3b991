package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/makr-code/VCC-Veritas-sub012/internal/agents"
	"github.com/makr-code/VCC-Veritas-sub012/internal/engine"
	"github.com/makr-code/VCC-Veritas-sub012/internal/executors"
	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/internal/store"
	"github.com/makr-code/VCC-Veritas-sub012/internal/validation"
)

// VeritasServerDeps holds the dependencies for creating a VeritasServer.
type VeritasServerDeps struct {
	Scheduler *engine.Scheduler
	Documents *validation.DocumentValidator
	Executors *executors.Registry
	Providers *agents.Registry
	Engines   *expressions.Set
	Recorder  store.RunRecorder
	Logger    *slog.Logger
}

// VeritasServer wraps an MCP server with pipeline tool handlers.
type VeritasServer struct {
	scheduler *engine.Scheduler
	documents *validation.DocumentValidator
	executors *executors.Registry
	providers *agents.Registry
	engines   *expressions.Set
	recorder  store.RunRecorder
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewVeritasServer creates a new VeritasServer with all 4 tools registered.
func NewVeritasServer(deps VeritasServerDeps) *VeritasServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &VeritasServer{
		scheduler: deps.Scheduler,
		documents: deps.Documents,
		executors: deps.Executors,
		providers: deps.Providers,
		engines:   deps.Engines,
		recorder:  deps.Recorder,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"veritas",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Veritas executes declarative multi-phase pipelines. Use pipeline.run to execute a pipeline document, pipeline.validate to check a document without running it, pipeline.executors to list registered executors and agent capabilities, and pipeline.history to inspect past runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *VeritasServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *VeritasServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *VeritasServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: executorsTool(), Handler: s.handleExecutors},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("pipeline.run",
		mcp.WithDescription("Execute a pipeline document"),
		mcp.WithString("document", mcp.Required(), mcp.Description("Pipeline document as a JSON string")),
		mcp.WithObject("input", mcp.Description("Initial input recorded under the reserved 'input' key")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("pipeline.validate",
		mcp.WithDescription("Validate a pipeline document without executing it"),
		mcp.WithString("document", mcp.Required(), mcp.Description("Pipeline document as a JSON string")),
	)
}

func executorsTool() mcp.Tool {
	return mcp.NewTool("pipeline.executors",
		mcp.WithDescription("List registered executors and agent capabilities"),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("pipeline.history",
		mcp.WithDescription("Inspect past pipeline runs"),
		mcp.WithString("run_id", mcp.Description("Return one run with its phase events (default: list recent runs)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to list (default 50)")),
	)
}
