package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// ollamaBackend talks to an Ollama server through its native chat API.
type ollamaBackend struct {
	client  *api.Client
	baseURL string
	model   string
	logger  *zap.Logger
}

func newOllamaBackend(c *Config, httpClient *http.Client, logger *zap.Logger) (*ollamaBackend, error) {
	baseURL := strings.TrimRight(c.URL, "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", c.URL, err)
	}
	return &ollamaBackend{
		client:  api.NewClient(u, httpClient),
		baseURL: baseURL,
		model:   c.Model,
		logger:  logger,
	}, nil
}

// ollamaMessage and ollamaToolCall mirror the wire form of api.Message.
// Messages are built through JSON so that only the fields the chat endpoint understands are set.
type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func (b *ollamaBackend) Complete(ctx context.Context, messages []Message, catalog []types.Tool) (Completion, error) {
	if len(messages) == 0 {
		return nil, protocolErrorf(b.baseURL, "conversation must contain at least one message")
	}
	msgs, err := toOllamaMessages(messages)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, URL: b.baseURL, Err: err}
	}
	tools, err := toOllamaTools(catalog)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, URL: b.baseURL, Err: err}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    b.model,
		Messages: msgs,
		Tools:    tools,
		Stream:   &stream,
	}

	var (
		resp     api.ChatResponse
		received bool
	)
	err = b.client.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		received = true
		return nil
	})
	if err != nil {
		return nil, classifyError(b.baseURL, err)
	}
	if !received {
		return nil, protocolErrorf(b.baseURL, "chat response is empty")
	}

	if len(resp.Message.ToolCalls) > 0 {
		if len(resp.Message.ToolCalls) > 1 {
			b.logger.Warn(
				"model requested several tool calls in one reply, only the first one is used",
				zap.Int("tool_calls", len(resp.Message.ToolCalls)),
			)
		}
		return b.fromOllamaToolCall(resp.Message.ToolCalls[0])
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return nil, protocolErrorf(b.baseURL, "chat response has neither content nor a tool call")
	}
	return DirectAnswer{Text: resp.Message.Content}, nil
}

// Ping checks that the Ollama server answers its heartbeat.
func (b *ollamaBackend) Ping(ctx context.Context) error {
	if err := b.client.Heartbeat(ctx); err != nil {
		return classifyError(b.baseURL, err)
	}
	return nil
}

func (b *ollamaBackend) fromOllamaToolCall(tc api.ToolCall) (Completion, error) {
	var wire ollamaToolCall
	if err := roundTrip(tc, &wire); err != nil {
		return nil, &Error{Kind: KindProtocol, URL: b.baseURL, Err: err}
	}
	if wire.Function.Name == "" {
		return nil, protocolErrorf(b.baseURL, "tool call has no function name")
	}
	args := wire.Function.Arguments
	if args == nil {
		args = map[string]any{}
	}
	// Ollama does not assign ids to tool calls
	return ToolCall{ID: "call_" + wire.Function.Name, Name: wire.Function.Name, Arguments: args}, nil
}

func toOllamaMessages(messages []Message) ([]api.Message, error) {
	wire := make([]ollamaMessage, 0, len(messages))
	// tool result messages name the tool they answer
	toolNames := make(map[string]string)
	for _, m := range messages {
		msg := ollamaMessage{Role: string(m.Role), Content: m.Content}
		if m.ToolCall != nil {
			args := m.ToolCall.Arguments
			if args == nil {
				args = map[string]any{}
			}
			msg.ToolCalls = []ollamaToolCall{{
				Function: ollamaFunctionCall{Name: m.ToolCall.Name, Arguments: args},
			}}
			toolNames[m.ToolCall.ID] = m.ToolCall.Name
		}
		if m.Role == RoleTool {
			msg.ToolName = toolNames[m.ToolCallID]
		}
		wire = append(wire, msg)
	}

	var msgs []api.Message
	if err := roundTrip(wire, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func toOllamaTools(catalog []types.Tool) (api.Tools, error) {
	if len(catalog) == 0 {
		return nil, nil
	}
	wire := make([]ollamaTool, 0, len(catalog))
	for _, t := range catalog {
		wire = append(wire, ollamaTool{
			Type: "function",
			Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolParameters(t),
			},
		})
	}

	var tools api.Tools
	if err := roundTrip(wire, &tools); err != nil {
		return nil, fmt.Errorf("failed to convert tool catalog: %w", err)
	}
	return tools, nil
}

func roundTrip(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
