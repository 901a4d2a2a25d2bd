package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// openAIBackend talks to any server implementing the OpenAI chat completions API,
// eg- llama.cpp's llama-server.
type openAIBackend struct {
	client  *openai.Client
	baseURL string
	model   string
	logger  *zap.Logger
}

func newOpenAIBackend(c *Config, httpClient *http.Client, logger *zap.Logger) *openAIBackend {
	baseURL := strings.TrimRight(c.URL, "/")

	oc := openai.DefaultConfig(c.APIKey)
	oc.BaseURL = baseURL
	oc.HTTPClient = httpClient

	return &openAIBackend{
		client:  openai.NewClientWithConfig(oc),
		baseURL: baseURL,
		model:   c.Model,
		logger:  logger,
	}
}

func (b *openAIBackend) Complete(ctx context.Context, messages []Message, catalog []types.Tool) (Completion, error) {
	if len(messages) == 0 {
		return nil, protocolErrorf(b.baseURL, "conversation must contain at least one message")
	}
	msgs, err := toOpenAIMessages(messages)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, URL: b.baseURL, Err: err}
	}

	req := openai.ChatCompletionRequest{
		Model:    b.model,
		Messages: msgs,
		Tools:    toOpenAITools(catalog),
	}
	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(b.baseURL, err)
	}
	if len(resp.Choices) == 0 {
		return nil, protocolErrorf(b.baseURL, "completion has no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		if len(msg.ToolCalls) > 1 {
			b.logger.Warn(
				"model requested several tool calls in one reply, only the first one is used",
				zap.Int("tool_calls", len(msg.ToolCalls)),
			)
		}
		return fromOpenAIToolCall(b.baseURL, msg.ToolCalls[0])
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, protocolErrorf(b.baseURL, "completion has neither content nor a tool call")
	}
	return DirectAnswer{Text: msg.Content}, nil
}

// Ping lists the models served by the backend.
func (b *openAIBackend) Ping(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return classifyError(b.baseURL, err)
	}
	return nil
}

func fromOpenAIToolCall(baseURL string, tc openai.ToolCall) (Completion, error) {
	if tc.Function.Name == "" {
		return nil, protocolErrorf(baseURL, "tool call has no function name")
	}
	args, err := decodeArguments(tc.Function.Arguments)
	if err != nil {
		return nil, &Error{Kind: KindProtocol, URL: baseURL, Err: err}
	}
	id := tc.ID
	if id == "" {
		id = "call_" + tc.Function.Name
	}
	return ToolCall{ID: id, Name: tc.Function.Name, Arguments: args}, nil
}

func toOpenAITools(catalog []types.Tool) []openai.Tool {
	if len(catalog) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(catalog))
	for _, t := range catalog {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toolParameters(t),
			},
		})
	}
	return tools
}

func toOpenAIMessages(messages []Message) ([]openai.ChatCompletionMessage, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch {
		case m.ToolCall != nil:
			args, err := encodeArguments(m.ToolCall.Arguments)
			if err != nil {
				return nil, err
			}
			msg.ToolCalls = []openai.ToolCall{{
				ID:   m.ToolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      m.ToolCall.Name,
					Arguments: args,
				},
			}}
		case m.Role == RoleTool:
			if m.ToolCallID == "" {
				return nil, errors.New("tool result message must reference a tool call")
			}
			msg.ToolCallID = m.ToolCallID
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
