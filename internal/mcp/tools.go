package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recallmcp/recall/internal/indexer"
	"github.com/recallmcp/recall/internal/searcher"
	"github.com/recallmcp/recall/internal/state"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32001 // Query parameter is empty
)

// argsMap extracts the arguments object. Clients may omit arguments
// entirely when a tool has no required parameters, so nil means empty.
func argsMap(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsMap(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	project := getStringDefault(args, "project", "")
	limit := getIntDefault(args, "limit", 0)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:   query,
		Project: project,
		Limit:   limit,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		entry := map[string]interface{}{
			"score":   fmt.Sprintf("%.4f", r.Score),
			"file":    r.Payload.FilePath,
			"line":    r.Payload.Line,
			"role":    r.Payload.Role,
			"preview": r.Payload.Preview,
			"project": r.Payload.Project,
		}
		if !r.Payload.Timestamp.IsZero() {
			entry["timestamp"] = r.Payload.Timestamp.Format(time.RFC3339)
		}
		if r.Payload.SessionID != "" {
			entry["session_id"] = r.Payload.SessionID
		}
		results[i] = entry
	}

	response := map[string]interface{}{
		"results":     results,
		"count":       len(results),
		"duration_ms": resp.Duration.Milliseconds(),
	}
	if resp.IndexWarning != "" {
		response["index_warning"] = resp.IndexWarning
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleReindex handles the reindex tool invocation
func (s *Server) handleReindex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsMap(request)
	if err != nil {
		return nil, err
	}

	project, ok := args["project"].(string)
	if !ok || project == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project parameter is required", map[string]interface{}{
			"param":  "project",
			"reason": "missing or empty",
		})
	}
	full := getBoolDefault(args, "full", false)

	summary, err := s.indexer.Index(ctx, project, full)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"project":         summary.Project,
		"full":            full,
		"files_processed": summary.FilesProcessed,
		"records_indexed": summary.RecordsIndexed,
		"records_skipped": summary.RecordsSkipped,
		"duration_ms":     summary.Duration.Milliseconds(),
	}
	if len(summary.Errors) > 0 {
		errorCount := len(summary.Errors)
		if errorCount > 5 {
			response["errors"] = summary.Errors[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = summary.Errors
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIndexStatus handles the index_status tool invocation
func (s *Server) handleIndexStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := argsMap(request)
	if err != nil {
		return nil, err
	}

	project := getStringDefault(args, "project", "")
	if project != "" {
		status, err := s.indexer.Status(ctx, project)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return mcp.NewToolResultText(formatJSON(statusEntry(status))), nil
	}

	projects, err := s.states.ListProjects()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list indexed projects", map[string]interface{}{
			"error": err.Error(),
		})
	}

	entries := make([]map[string]interface{}, 0, len(projects))
	for _, p := range projects {
		status, err := s.indexer.Status(ctx, p)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
				"project": p,
				"error":   err.Error(),
			})
		}
		entries = append(entries, statusEntry(status))
	}

	response := map[string]interface{}{
		"projects": entries,
		"count":    len(entries),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// statusEntry renders one project's index status.
func statusEntry(status *indexer.Status) map[string]interface{} {
	return map[string]interface{}{
		"project":       status.Project,
		"collection":    status.Collection,
		"files_tracked": status.FilesTracked,
		"total_indexed": status.TotalIndexed,
		"vector_count":  status.VectorCount,
		"indexed":       status.TotalIndexed > 0,
	}
}

// handleListProjects handles the list_projects tool invocation
func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.indexer.Projects()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list projects", map[string]interface{}{
			"error": err.Error(),
		})
	}

	indexed, err := s.states.ListProjects()
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list indexed projects", map[string]interface{}{
			"error": err.Error(),
		})
	}
	// State directories use sanitized names, log directories raw ones; key
	// the lookup on the sanitized form so both sides agree.
	indexedSet := make(map[string]bool, len(indexed))
	for _, p := range indexed {
		indexedSet[state.Sanitize(p)] = true
	}

	entries := make([]map[string]interface{}, len(projects))
	for i, p := range projects {
		entries[i] = map[string]interface{}{
			"project": p,
			"indexed": indexedSet[state.Sanitize(p)],
		}
	}

	response := map[string]interface{}{
		"projects": entries,
		"count":    len(entries),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
