// Package agent implements the tool-calling loop: discover the tools of the configured
// tool servers, prompt the model, execute the tool it asks for and prompt it again
// with the result.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/deskmcp/deskmcp/internal/backend"
	"github.com/deskmcp/deskmcp/internal/telemetry"
	"github.com/deskmcp/deskmcp/pkg/types"
	"go.uber.org/zap"
)

// DefaultMaxToolCalls is the number of tool calls allowed in a single run.
const DefaultMaxToolCalls = 1

// State is the step an agent run is in.
type State string

const (
	StateDiscovering    State = "discovering"
	StatePrompting      State = "prompting"
	StateExecuting      State = "executing"
	StateFinalPrompting State = "final_prompting"
	StateAnswered       State = "answered"
	StateDone           State = "done"
)

// ToolServer is a source of tools the agent can discover and invoke.
type ToolServer interface {
	Name() string
	ListTools(ctx context.Context) ([]types.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*types.ToolCallResult, error)
}

// Config holds the configuration parameters of an Agent.
type Config struct {
	// Instructions is sent to the model as the system message. Empty means no system message.
	Instructions string
	// MaxToolCalls bounds the number of tool calls in one run. Values below 1 mean DefaultMaxToolCalls.
	MaxToolCalls int

	Logger  *zap.Logger
	Metrics telemetry.CustomMetrics
}

// Agent answers natural-language requests using a model backend and a set of tool servers.
// An Agent holds no state between runs.
type Agent struct {
	backend      backend.Backend
	servers      []ToolServer
	instructions string
	maxToolCalls int

	logger  *zap.Logger
	metrics telemetry.CustomMetrics
}

// ToolCallRecord describes one tool invocation performed during a run.
type ToolCallRecord struct {
	Server    string
	Tool      string
	Arguments map[string]any
	Result    *types.ToolCallResult
}

// Result is the outcome of a successful run.
type Result struct {
	Answer    string
	ToolCalls []ToolCallRecord
	// Transcript is the conversation sent to the model in the last prompt.
	Transcript []backend.Message
}

// New creates an Agent.
func New(b backend.Backend, servers []ToolServer, c *Config) (*Agent, error) {
	if b == nil {
		return nil, errors.New("model backend must not be nil")
	}
	if len(servers) == 0 {
		return nil, errors.New("at least one tool server is required")
	}
	if c == nil {
		c = &Config{}
	}
	a := &Agent{
		backend:      b,
		servers:      servers,
		instructions: c.Instructions,
		maxToolCalls: c.MaxToolCalls,
		logger:       c.Logger,
		metrics:      c.Metrics,
	}
	if a.maxToolCalls < 1 {
		a.maxToolCalls = DefaultMaxToolCalls
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.metrics == nil {
		a.metrics = telemetry.NewNoopCustomMetrics()
	}
	return a, nil
}

// Discover fetches the tools of every tool server, in order.
func (a *Agent) Discover(ctx context.Context) (*Catalog, error) {
	catalog := newCatalog()
	for _, s := range a.servers {
		tools, err := s.ListTools(ctx)
		if err != nil {
			return nil, newError(KindDiscovery, err, "failed to list tools of tool server %s", s.Name())
		}
		for _, t := range tools {
			if err := catalog.add(s, t); err != nil {
				return nil, newError(KindDiscovery, err, "failed to merge tools of tool server %s", s.Name())
			}
		}
	}
	return catalog, nil
}

// Run answers a single request.
// Every failure is terminal and returned as an *Error.
func (a *Agent) Run(ctx context.Context, request string) (*Result, error) {
	started := time.Now()
	result := &Result{}
	outcome := "error"
	defer func() {
		a.metrics.RecordAgentRun(ctx, outcome, len(result.ToolCalls), time.Since(started))
	}()

	a.transition(StateDiscovering)
	catalog, err := a.Discover(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("discovered tools", zap.Int("tools", catalog.Len()))

	messages := make([]backend.Message, 0, 2+2*a.maxToolCalls)
	if a.instructions != "" {
		messages = append(messages, backend.Message{Role: backend.RoleSystem, Content: a.instructions})
	}
	messages = append(messages, backend.Message{Role: backend.RoleUser, Content: request})

	a.transition(StatePrompting)
	for {
		completion, err := a.backend.Complete(ctx, messages, catalog.Tools())
		if err != nil {
			return nil, backendError(err)
		}

		switch c := completion.(type) {
		case backend.DirectAnswer:
			a.transition(StateAnswered)
			result.Answer = c.Text
			result.Transcript = messages
			outcome = "success"
			a.transition(StateDone)
			return result, nil

		case backend.ToolCall:
			if len(result.ToolCalls) >= a.maxToolCalls {
				return nil, newError(
					KindBackendProtocol, nil,
					"model requested tool %s after the limit of %d tool call(s) was reached", c.Name, a.maxToolCalls,
				)
			}

			a.transition(StateExecuting)
			record, content, err := a.execute(ctx, catalog, c)
			if err != nil {
				return nil, err
			}
			result.ToolCalls = append(result.ToolCalls, *record)

			call := c
			messages = append(messages,
				backend.Message{Role: backend.RoleAssistant, ToolCall: &call},
				backend.Message{Role: backend.RoleTool, ToolCallID: c.ID, Content: content},
			)
			a.transition(StateFinalPrompting)

		default:
			return nil, newError(KindBackendProtocol, nil, "unexpected completion type %T", completion)
		}
	}
}

// execute resolves and invokes the requested tool. It returns the text handed back to the model.
func (a *Agent) execute(ctx context.Context, catalog *Catalog, call backend.ToolCall) (*ToolCallRecord, string, error) {
	server, toolName, ok := catalog.Resolve(call.Name)
	if !ok {
		return nil, "", newError(KindToolResolution, nil, "model requested unknown tool %s", call.Name)
	}

	a.logger.Info(
		"calling tool",
		zap.String("server", server.Name()),
		zap.String("tool", toolName),
		zap.Any("arguments", call.Arguments),
	)
	res, err := server.CallTool(ctx, toolName, call.Arguments)
	if err != nil {
		return nil, "", newError(KindToolExecution, err, "failed to call tool %s on tool server %s", toolName, server.Name())
	}
	if res.Failed() {
		return nil, "", newError(KindToolExecution, nil, "tool %s failed: %s", toolName, res.Error)
	}

	content, err := encodeToolOutput(res.Output)
	if err != nil {
		return nil, "", newError(KindToolExecution, err, "failed to encode output of tool %s", toolName)
	}
	record := &ToolCallRecord{Server: server.Name(), Tool: toolName, Arguments: call.Arguments, Result: res}
	return record, content, nil
}

func (a *Agent) transition(s State) {
	a.logger.Debug("agent state", zap.String("state", string(s)))
}

// encodeToolOutput renders the tool output as a JSON array, the way the tool server returns it.
func encodeToolOutput(output []string) (string, error) {
	if output == nil {
		output = []string{}
	}
	b, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool output: %w", err)
	}
	return string(b), nil
}
