// Package toolserver implements the deskmcp tool server: a fixed catalog of tools
// exposed over MCP. The service is stateless, every call is served independently.
package toolserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deskmcp/deskmcp/internal/telemetry"
	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ErrUnknownTool is the error reported in a ToolCallResult when the requested tool is not in the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ServiceConfig holds the configuration parameters for initializing the ToolServerService.
type ServiceConfig struct {
	// Name identifies this tool server in metrics and in the MCP handshake.
	Name string
	// Dir is the directory listed by the list_desktop_files tool.
	Dir string
	// Fs is the filesystem Dir lives on. Defaults to the OS filesystem.
	Fs afero.Fs

	Logger  *zap.Logger
	Metrics telemetry.CustomMetrics
}

// toolHandler executes a single catalog tool.
type toolHandler func(ctx context.Context, args map[string]any) ([]string, error)

type catalogEntry struct {
	tool    types.Tool
	handler toolHandler
}

// ToolServerService serves the tool catalog and executes tool calls.
type ToolServerService struct {
	name    string
	dir     string
	fs      afero.Fs
	logger  *zap.Logger
	metrics telemetry.CustomMetrics

	// catalog is built once at construction and never mutated afterward.
	catalog []catalogEntry
}

// NewToolServerService creates a new instance of ToolServerService.
func NewToolServerService(c *ServiceConfig) (*ToolServerService, error) {
	if c == nil {
		return nil, fmt.Errorf("tool server config must not be nil")
	}
	if c.Dir == "" {
		return nil, fmt.Errorf("tool server directory must not be empty")
	}
	s := &ToolServerService{
		name:    c.Name,
		dir:     c.Dir,
		fs:      c.Fs,
		logger:  c.Logger,
		metrics: c.Metrics,
	}
	if s.name == "" {
		s.name = "desktop_file_lister"
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = telemetry.NewNoopCustomMetrics()
	}

	s.catalog = []catalogEntry{
		{tool: listDesktopFilesTool, handler: s.listDesktopFiles},
	}
	return s, nil
}

// Name returns the name of this tool server.
func (s *ToolServerService) Name() string {
	return s.name
}

// ListTools returns the tool catalog.
// The catalog is static, so repeated calls return identical descriptors in the same order.
func (s *ToolServerService) ListTools() []types.Tool {
	tools := make([]types.Tool, len(s.catalog))
	for i, e := range s.catalog {
		tools[i] = e.tool
	}
	return tools
}

// GetTool returns the descriptor of a catalog tool.
func (s *ToolServerService) GetTool(name string) (types.Tool, bool) {
	e, ok := s.lookup(name)
	if !ok {
		return types.Tool{}, false
	}
	return e.tool, true
}

// CallTool executes a catalog tool.
// It never returns a Go error: failures, including unknown tool names, are reported in the result.
func (s *ToolServerService) CallTool(ctx context.Context, name string, args map[string]any) *types.ToolCallResult {
	result := &types.ToolCallResult{ToolName: name}

	e, ok := s.lookup(name)
	if !ok {
		s.logger.Warn("rejected call to unknown tool", zap.String("tool", name))
		result.Error = ErrUnknownTool.Error()
		return result
	}

	started := time.Now()
	outcome := telemetry.ToolCallOutcomeError
	defer func() {
		s.metrics.RecordToolCall(ctx, s.name, name, outcome, time.Since(started))
	}()

	output, err := e.handler(ctx, args)
	if err != nil {
		s.logger.Error("tool call failed", zap.String("tool", name), zap.Error(err))
		result.Error = err.Error()
		return result
	}

	outcome = telemetry.ToolCallOutcomeSuccess
	result.Output = output
	return result
}

// Register adds every catalog tool to the given MCP server.
func (s *ToolServerService) Register(srv *server.MCPServer) {
	for _, e := range s.catalog {
		srv.AddTool(convertToolToMcpObject(e.tool), s.mcpToolCallHandler)
	}
}

func (s *ToolServerService) lookup(name string) (catalogEntry, bool) {
	for _, e := range s.catalog {
		if e.tool.Name == name {
			return e, true
		}
	}
	return catalogEntry{}, false
}
