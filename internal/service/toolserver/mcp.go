package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/mark3labs/mcp-go/mcp"
)

// mcpToolCallHandler adapts CallTool to the mcp-go tool handler signature.
// Tool failures are returned as MCP tool errors (isError=true) rather than protocol errors,
// so that the caller can tell a failed tool apart from an unreachable server.
func (s *ToolServerService) mcpToolCallHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res := s.CallTool(ctx, req.Params.Name, req.GetArguments())
	if res.Failed() {
		return mcp.NewToolResultError(res.Error), nil
	}
	return convertToolCallResultToMcpObject(res)
}

// convertToolCallResultToMcpObject renders a successful result as MCP content.
// The text content holds the entries as a JSON array, which keeps an empty listing
// distinguishable from a failure. The same entries are attached as structured content.
func convertToolCallResultToMcpObject(res *types.ToolCallResult) (*mcp.CallToolResult, error) {
	text, err := json.Marshal(res.Output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output of tool %s: %w", res.ToolName, err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{mcp.NewTextContent(string(text))},
		StructuredContent: map[string]any{"entries": res.Output},
	}, nil
}

// convertToolToMcpObject converts a catalog descriptor to a mcp.Tool object
func convertToolToMcpObject(t types.Tool) mcp.Tool {
	tool := mcp.NewTool(t.Name, mcp.WithDescription(t.Description))

	tool.InputSchema = mcp.ToolInputSchema{
		Type:       t.InputSchema.Type,
		Properties: t.InputSchema.Properties,
		Required:   t.InputSchema.Required,
	}

	if title, ok := t.Annotations["title"].(string); ok {
		tool.Annotations.Title = title
	}
	if readOnly, ok := t.Annotations["readOnlyHint"].(bool); ok {
		tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(readOnly)
	}

	return tool
}
