// Package mcp provides the client side of the Model Context Protocol for deskmcp:
// it connects to tool servers, discovers their tools and invokes them.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deskmcp/deskmcp/internal/telemetry"
	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// SessionConfig holds the configuration parameters for connecting to a tool server.
type SessionConfig struct {
	// Name is the unique name of the tool server, used to disambiguate tool names.
	Name string
	// URL is the base URL of the tool server, eg- http://127.0.0.1:8000
	URL       string
	Transport types.McpServerTransport

	InitReqTimeoutSec int

	Logger  *zap.Logger
	Metrics telemetry.CustomMetrics
}

// Session is an initialized connection to a single tool server.
type Session struct {
	name    string
	client  *client.Client
	logger  *zap.Logger
	metrics telemetry.CustomMetrics
}

// Dial connects to the tool server described by c and performs the MCP initialization handshake.
func Dial(ctx context.Context, c *SessionConfig) (*Session, error) {
	if err := ValidateServerName(c.Name); err != nil {
		return nil, err
	}
	if c.URL == "" {
		return nil, fmt.Errorf("url of tool server %s must not be empty", c.Name)
	}
	timeout := c.InitReqTimeoutSec
	if timeout < 1 {
		timeout = 10
	}

	var (
		mcpClient *client.Client
		err       error
	)
	switch c.Transport {
	case types.TransportStreamableHTTP:
		mcpClient, err = createHTTPMcpServerConn(ctx, c.URL, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection to streamable http tool server %s: %w", c.Name, err)
		}
	case types.TransportSSE, "":
		mcpClient, err = createSSEMcpServerConn(ctx, c.URL, timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create connection to SSE tool server %s: %w", c.Name, err)
		}
	default:
		return nil, fmt.Errorf("unsupported transport %s for tool server %s", c.Transport, c.Name)
	}

	s := NewSession(c.Name, mcpClient, c.Logger, c.Metrics)
	s.logger.Debug("connected to tool server", zap.String("server", c.Name), zap.String("url", c.URL))
	return s, nil
}

// NewSession wraps an mcp-go client that has already been initialized.
func NewSession(name string, c *client.Client, logger *zap.Logger, metrics telemetry.CustomMetrics) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopCustomMetrics()
	}
	return &Session{name: name, client: c, logger: logger, metrics: metrics}
}

// Name returns the name of the tool server this session is connected to.
func (s *Session) Name() string {
	return s.name
}

// ListTools fetches the tool catalog of the server.
func (s *Session) ListTools(ctx context.Context) ([]types.Tool, error) {
	resp, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tools from tool server %s: %w", s.name, err)
	}
	tools := make([]types.Tool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		tools = append(tools, convertMcpToolToAPIObject(t))
	}
	return tools, nil
}

// CallTool invokes a tool on the server.
// A Go error means the server could not be reached or did not answer properly.
// A tool that ran and failed is reported through ToolCallResult.Error instead.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*types.ToolCallResult, error) {
	started := time.Now()
	outcome := telemetry.ToolCallOutcomeError
	defer func() {
		s.metrics.RecordToolCall(ctx, s.name, name, outcome, time.Since(started))
	}()

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	resp, err := s.client.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to call tool %s on tool server %s: %w", name, s.name, err)
	}

	result := convertToolCallResToAPIRes(name, resp)
	if !result.Failed() {
		outcome = telemetry.ToolCallOutcomeSuccess
	}
	return result, nil
}

// Close terminates the session.
func (s *Session) Close() error {
	return s.client.Close()
}

// convertMcpToolToAPIObject converts a mcp.Tool received from a server into a catalog descriptor.
func convertMcpToolToAPIObject(t mcp.Tool) types.Tool {
	tool := types.Tool{
		Name:        t.GetName(),
		Description: t.Description,
		InputSchema: types.ToolInputSchema{
			Type:       t.InputSchema.Type,
			Properties: t.InputSchema.Properties,
			Required:   t.InputSchema.Required,
		},
	}
	if tool.InputSchema.Type == "" {
		tool.InputSchema.Type = "object"
	}

	// annotations are carried on best-effort basis
	if b, err := json.Marshal(t.Annotations); err == nil {
		var annotations map[string]any
		if err := json.Unmarshal(b, &annotations); err == nil && len(annotations) > 0 {
			tool.Annotations = annotations
		}
	}
	return tool
}

// convertToolCallResToAPIRes converts an MCP CallToolResult to types.ToolCallResult.
// Text content holding a JSON array of strings is flattened into the output entries,
// any other text content becomes a single entry.
func convertToolCallResToAPIRes(name string, resp *mcp.CallToolResult) *types.ToolCallResult {
	texts := textContents(resp.Content)

	if resp.IsError {
		msg := strings.TrimSpace(strings.Join(texts, "\n"))
		if msg == "" {
			msg = "tool reported an error"
		}
		return &types.ToolCallResult{ToolName: name, Error: msg}
	}

	output := make([]string, 0, len(texts))
	for _, text := range texts {
		var entries []string
		if err := json.Unmarshal([]byte(text), &entries); err == nil {
			output = append(output, entries...)
			continue
		}
		output = append(output, text)
	}
	return &types.ToolCallResult{ToolName: name, Output: output}
}

// textContents extracts the text of every text content item, in order.
// Non-text content (images, resources) is not meaningful to a text-only model and is skipped.
func textContents(content []mcp.Content) []string {
	texts := make([]string, 0, len(content))
	for _, item := range content {
		switch c := item.(type) {
		case mcp.TextContent:
			texts = append(texts, c.Text)
		case *mcp.TextContent:
			texts = append(texts, c.Text)
		}
	}
	return texts
}
