package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/copyleftdev/tsp-mcp/internal/optimization"
)

// MCP tool names
const (
	ToolSolve    = "tsp_solve"
	ToolStatus   = "tsp_status"
	ToolCancel   = "tsp_cancel"
	ToolDatasets = "tsp_datasets"
)

// maxMCPWait caps how long tsp_solve blocks for a result
const maxMCPWait = 5 * time.Minute

// mcpWaitLimit bounds tsp_solve waits to 90% of the HTTP write timeout so
// the result is written before the server cuts the response.
func (s *Server) mcpWaitLimit() time.Duration {
	limit := maxMCPWait
	if wt := s.cfg.HTTP.WriteTimeout; wt > 0 {
		if capped := wt - wt/10; capped < limit {
			limit = capped
		}
	}
	return limit
}

// parseSeed accepts a decimal string or an integral JSON number. Numbers
// beyond 2^53 are rejected since they arrive already rounded.
func parseSeed(v interface{}) (int64, error) {
	switch seed := v.(type) {
	case string:
		return strconv.ParseInt(strings.TrimSpace(seed), 10, 64)
	case json.Number:
		return seed.Int64()
	case float64:
		if seed != math.Trunc(seed) || math.Abs(seed) > 1<<53 {
			return 0, fmt.Errorf("seed %v is not an exact integer, pass it as a string", seed)
		}
		return int64(seed), nil
	default:
		return 0, fmt.Errorf("seed must be an integer or a decimal string, got %T", v)
	}
}

// newMCPServer registers the TSP tools on a new MCP server.
func (s *Server) newMCPServer(version string) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer(
		"tsp-optimization",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	solveTool := mcp.NewTool(ToolSolve,
		mcp.WithDescription("Solve a travelling salesman instance with Christofides and/or a genetic algorithm. Returns the job status, including tours once finished."),
		mcp.WithArray("points", mcp.Description("Points as objects {name, lat, lon} in decimal degrees"),
			mcp.Items(map[string]any{"type": "object"})),
		mcp.WithString("dataset", mcp.Description("Built-in dataset instead of points: french_cities or unit_square")),
		mcp.WithArray("algorithms", mcp.Description("Algorithms to run: christofides, genetic (default both)"),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("start", mcp.Description("Point name the Christofides tour starts from")),
		mcp.WithString("seed", mcp.Description("Seed for the genetic algorithm as a decimal integer string")),
		mcp.WithNumber("wait_seconds", mcp.Description("Seconds to wait for the job to finish before returning (default 0)")),
	)
	statusTool := mcp.NewTool(ToolStatus,
		mcp.WithDescription("Get the status and results of an optimization job"),
		mcp.WithString("optimization_id", mcp.Description("Job ID returned by tsp_solve"), mcp.Required()),
	)
	cancelTool := mcp.NewTool(ToolCancel,
		mcp.WithDescription("Cancel a running optimization job"),
		mcp.WithString("optimization_id", mcp.Description("Job ID returned by tsp_solve"), mcp.Required()),
	)
	datasetsTool := mcp.NewTool(ToolDatasets,
		mcp.WithDescription("List the built-in datasets"),
	)

	mcpSrv.AddTool(solveTool, s.handleToolSolve)
	mcpSrv.AddTool(statusTool, s.handleToolStatus)
	mcpSrv.AddTool(cancelTool, s.handleToolCancel)
	mcpSrv.AddTool(datasetsTool, s.handleToolDatasets)
	return mcpSrv
}

// MCPHandler serves the tools over the streamable HTTP transport at /mcp.
func (s *Server) MCPHandler(version string) http.Handler {
	return mcpserver.NewStreamableHTTPServer(
		s.newMCPServer(version),
		mcpserver.WithEndpointPath("/mcp"),
	)
}

func toolJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleToolSolve starts a job and optionally waits for it
func (s *Server) handleToolSolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var req OptimizeRequest
	raw, err := json.Marshal(map[string]interface{}{
		"points":     args["points"],
		"algorithms": args["algorithms"],
	})
	if err == nil {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	req.Dataset = request.GetString("dataset", "")
	req.Start = request.GetString("start", "")
	if raw, ok := args["seed"]; ok {
		seed, err := parseSeed(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid seed: %v", err)), nil
		}
		req.Genetic = &GeneticOverrides{Seed: &seed}
	}

	state, err := s.startOptimization(&req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if wait := time.Duration(request.GetFloat("wait_seconds", 0) * float64(time.Second)); wait > 0 {
		if limit := s.mcpWaitLimit(); wait > limit {
			wait = limit
		}
		select {
		case <-state.done:
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}

	resp, err := s.lookup(state.ID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(resp)
}

func (s *Server) handleToolStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("optimization_id", "")
	if id == "" {
		return mcp.NewToolResultError("optimization_id parameter is required"), nil
	}
	resp, err := s.lookup(id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toolJSON(resp)
}

func (s *Server) handleToolCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("optimization_id", "")
	if id == "" {
		return mcp.NewToolResultError("optimization_id parameter is required"), nil
	}
	if err := s.cancelOptimization(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("cancellation requested"), nil
}

func (s *Server) handleToolDatasets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolJSON(map[string]int{
		DatasetFrenchCities: len(optimization.FrenchCities()),
		DatasetUnitSquare:   len(optimization.UnitSquare()),
	})
}
