package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/makr-code/VCC-Veritas-sub012/internal/validation"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// handleRun parses, validates and executes a pipeline document.
func (s *VeritasServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}
	input := mcp.ParseStringMap(req, "input", nil)

	cfg, parseErr := s.documents.ParseDocument([]byte(document), s.executors, s.engines)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid pipeline document: %v", parseErr)), nil
	}

	result, runErr := s.scheduler.Execute(ctx, cfg, input)
	if runErr != nil && result == nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline execution failed: %v", runErr)), nil
	}
	// Aborted runs still carry partial results worth returning.
	return marshalResult(result)
}

// handleValidate checks a pipeline document without executing it.
func (s *VeritasServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}

	if schemaErr := s.documents.ValidateDocument([]byte(document)); schemaErr != nil {
		return marshalResult(map[string]any{
			"valid":  false,
			"errors": []string{schemaErr.Error()},
		})
	}

	var cfg schema.PipelineConfig
	if decodeErr := json.Unmarshal([]byte(document), &cfg); decodeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("decode pipeline document: %v", decodeErr)), nil
	}

	result := validation.Validate(&cfg, s.executors, s.engines)
	out := map[string]any{"valid": result.Valid()}
	if len(result.Errors) > 0 {
		out["errors"] = result.Errors
	}
	if len(result.Warnings) > 0 {
		out["warnings"] = result.Warnings
	}
	return marshalResult(out)
}

// handleExecutors lists registered executors and agent capabilities.
func (s *VeritasServer) handleExecutors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{
		"executors":    s.executors.List(),
		"capabilities": s.providers.Capabilities(),
	})
}

// handleHistory returns one run with its phase events, or lists recent runs.
func (s *VeritasServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID := req.GetString("run_id", "")
	if runID != "" {
		run, getErr := s.recorder.GetRun(ctx, runID)
		if getErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", getErr)), nil
		}
		events, evErr := s.recorder.ListPhaseEvents(ctx, runID)
		if evErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("phase event lookup failed: %v", evErr)), nil
		}
		return marshalResult(map[string]any{"run": run, "phases": events})
	}

	limit := req.GetInt("limit", 50)
	runs, listErr := s.recorder.ListRuns(ctx, limit)
	if listErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run listing failed: %v", listErr)), nil
	}
	return marshalResult(map[string]any{"runs": runs, "count": len(runs)})
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
