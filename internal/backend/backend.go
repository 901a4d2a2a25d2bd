// Package backend talks to the language model inference server.
// It turns a conversation plus a tool catalog into a single Completion and performs no
// decision logic of its own.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/deskmcp/deskmcp/pkg/types"
	"go.uber.org/zap"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single role-tagged entry of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string

	// ToolCall is set on an assistant message that requested a tool invocation.
	ToolCall *ToolCall
	// ToolCallID links a tool result message to the call it answers.
	ToolCallID string
}

// Completion is the decoded reply of the model.
// It is either a DirectAnswer or a ToolCall.
type Completion interface {
	isCompletion()
}

// DirectAnswer is a final natural-language answer.
type DirectAnswer struct {
	Text string
}

// ToolCall is a request from the model to invoke a catalog tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

func (DirectAnswer) isCompletion() {}
func (ToolCall) isCompletion()     {}

// Backend is a chat-completion capable model server.
type Backend interface {
	// Complete sends the conversation and the tool catalog to the model and decodes its reply.
	// messages must not be empty. An empty catalog means the model cannot call tools.
	Complete(ctx context.Context, messages []Message, catalog []types.Tool) (Completion, error)
	// Ping checks that the model server is reachable.
	Ping(ctx context.Context) error
}

// Config holds the configuration parameters for creating a Backend.
type Config struct {
	Provider string
	URL      string
	Model    string
	APIKey   string
	Timeout  time.Duration

	// HTTPClient overrides the HTTP client used to reach the model server.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// New creates the Backend for the configured provider.
func New(c *Config) (Backend, error) {
	if c == nil {
		return nil, errors.New("backend config must not be nil")
	}
	if c.URL == "" {
		return nil, errors.New("backend url must not be empty")
	}
	if c.Model == "" {
		return nil, errors.New("backend model must not be empty")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.Timeout}
	}

	switch c.Provider {
	case ProviderOpenAI, "":
		return newOpenAIBackend(c, httpClient, logger), nil
	case ProviderOllama:
		return newOllamaBackend(c, httpClient, logger)
	default:
		return nil, fmt.Errorf(
			"unsupported backend provider %q, valid values are %s, %s", c.Provider, ProviderOpenAI, ProviderOllama,
		)
	}
}

type ErrorKind string

const (
	// KindConnection means the model server could not be reached.
	KindConnection ErrorKind = "connection"
	// KindProtocol means the model server answered with something that is not a valid completion.
	KindProtocol ErrorKind = "protocol"
)

// Error is returned by every Backend operation that fails.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindConnection {
		return fmt.Sprintf("model backend at %s is unreachable: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("invalid response from model backend at %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKindOf returns the kind of a backend error, or "" if err is not one.
func ErrorKindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func protocolErrorf(baseURL, format string, args ...any) error {
	return &Error{Kind: KindProtocol, URL: baseURL, Err: fmt.Errorf(format, args...)}
}

// classifyError decides whether a client library error is a transport failure or a bad response.
func classifyError(baseURL string, err error) error {
	var (
		urlErr *url.Error
		netErr net.Error
	)
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &Error{Kind: KindConnection, URL: baseURL, Err: err}
	}
	return &Error{Kind: KindProtocol, URL: baseURL, Err: err}
}
