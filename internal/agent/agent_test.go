package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/deskmcp/deskmcp/internal/backend"
	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend replies with the scripted completions, in order.
type fakeBackend struct {
	replies []backend.Completion
	errs    []error
	// prompts holds the conversation received by every Complete call
	prompts  [][]backend.Message
	catalogs [][]types.Tool
}

func (f *fakeBackend) Complete(_ context.Context, messages []backend.Message, catalog []types.Tool) (backend.Completion, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, append([]backend.Message(nil), messages...))
	f.catalogs = append(f.catalogs, catalog)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.replies) {
		return nil, &backend.Error{Kind: backend.KindProtocol, Err: errors.New("no scripted reply")}
	}
	return f.replies[i], nil
}

func (f *fakeBackend) Ping(context.Context) error { return nil }

type toolCall struct {
	name string
	args map[string]any
}

type fakeToolServer struct {
	name    string
	tools   []types.Tool
	listErr error
	output  []string
	toolErr string
	callErr error
	calls   []toolCall
}

func (f *fakeToolServer) Name() string { return f.name }

func (f *fakeToolServer) ListTools(context.Context) ([]types.Tool, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.tools, nil
}

func (f *fakeToolServer) CallTool(_ context.Context, name string, args map[string]any) (*types.ToolCallResult, error) {
	f.calls = append(f.calls, toolCall{name: name, args: args})
	if f.callErr != nil {
		return nil, f.callErr
	}
	return &types.ToolCallResult{ToolName: name, Output: f.output, Error: f.toolErr}, nil
}

func newDesktopServer() *fakeToolServer {
	return &fakeToolServer{
		name:   "desktop",
		tools:  []types.Tool{{Name: "list_desktop_files", Description: "Lists all files and folders on the Desktop"}},
		output: []string{"a.txt", "b.png"},
	}
}

func listCall() backend.ToolCall {
	return backend.ToolCall{ID: "call_1", Name: "list_desktop_files", Arguments: map[string]any{}}
}

func newTestAgent(t *testing.T, b backend.Backend, servers ...ToolServer) *Agent {
	t.Helper()
	a, err := New(b, servers, &Config{Instructions: "Use the tools to achieve the task"})
	require.NoError(t, err)
	return a
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	var agentErr *Error
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, kind, agentErr.Kind)
}

func TestNew(t *testing.T) {
	_, err := New(nil, []ToolServer{newDesktopServer()}, nil)
	assert.Error(t, err)

	_, err = New(&fakeBackend{}, nil, nil)
	assert.Error(t, err)

	a, err := New(&fakeBackend{}, []ToolServer{newDesktopServer()}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxToolCalls, a.maxToolCalls)
}

func TestRunDirectAnswer(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{backend.DirectAnswer{Text: "  Hello there!\n"}}}
	srv := newDesktopServer()

	res, err := newTestAgent(t, b, srv).Run(context.Background(), "say hi")
	require.NoError(t, err)

	assert.Equal(t, "  Hello there!\n", res.Answer, "answer must be returned verbatim")
	assert.Empty(t, srv.calls)
	assert.Empty(t, res.ToolCalls)
	require.Len(t, b.prompts, 1)

	prompt := b.prompts[0]
	require.Len(t, prompt, 2)
	assert.Equal(t, backend.RoleSystem, prompt[0].Role)
	assert.Equal(t, "Use the tools to achieve the task", prompt[0].Content)
	assert.Equal(t, backend.Message{Role: backend.RoleUser, Content: "say hi"}, prompt[1])
	assert.Equal(t, srv.tools, b.catalogs[0])
}

func TestRunWithoutInstructions(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{backend.DirectAnswer{Text: "hi"}}}

	a, err := New(b, []ToolServer{newDesktopServer()}, &Config{})
	require.NoError(t, err)
	_, err = a.Run(context.Background(), "say hi")
	require.NoError(t, err)

	require.Len(t, b.prompts[0], 1)
	assert.Equal(t, backend.RoleUser, b.prompts[0][0].Role)
}

func TestRunToolCall(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{
		listCall(),
		backend.DirectAnswer{Text: "There are 2 files: a.txt and b.png."},
	}}
	srv := newDesktopServer()

	res, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
	require.NoError(t, err)

	assert.Equal(t, "There are 2 files: a.txt and b.png.", res.Answer)
	require.Len(t, srv.calls, 1)
	assert.Equal(t, "list_desktop_files", srv.calls[0].name)

	require.Len(t, b.prompts, 2)
	second := b.prompts[1]
	require.Len(t, second, 4)
	assert.Equal(t, backend.RoleAssistant, second[2].Role)
	require.NotNil(t, second[2].ToolCall)
	assert.Equal(t, "list_desktop_files", second[2].ToolCall.Name)
	assert.Equal(t, backend.Message{Role: backend.RoleTool, ToolCallID: "call_1", Content: `["a.txt","b.png"]`}, second[3])

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "desktop", res.ToolCalls[0].Server)
	assert.Equal(t, []string{"a.txt", "b.png"}, res.ToolCalls[0].Result.Output)
	assert.Equal(t, second, res.Transcript)
}

func TestRunToolCallEmptyListing(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{listCall(), backend.DirectAnswer{Text: "There are no files."}}}
	srv := newDesktopServer()
	srv.output = nil

	res, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
	require.NoError(t, err)
	assert.Equal(t, "There are no files.", res.Answer)
	assert.Equal(t, "[]", b.prompts[1][3].Content)
}

func TestRunUnknownTool(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{
		backend.ToolCall{ID: "call_1", Name: "delete_everything"},
	}}
	srv := newDesktopServer()

	res, err := newTestAgent(t, b, srv).Run(context.Background(), "clean up")
	assert.Nil(t, res)
	requireKind(t, err, KindToolResolution)
	assert.Contains(t, err.Error(), "delete_everything")
	assert.Empty(t, srv.calls)
	assert.Len(t, b.prompts, 1)
}

func TestRunSecondToolCallIsProtocolError(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{listCall(), listCall()}}
	srv := newDesktopServer()

	res, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
	assert.Nil(t, res)
	requireKind(t, err, KindBackendProtocol)
	assert.Len(t, srv.calls, 1)
}

func TestRunMaxToolCalls(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{
		listCall(),
		backend.ToolCall{ID: "call_2", Name: "list_desktop_files"},
		backend.DirectAnswer{Text: "Still 2 files."},
	}}
	srv := newDesktopServer()

	a, err := New(b, []ToolServer{srv}, &Config{MaxToolCalls: 2})
	require.NoError(t, err)
	res, err := a.Run(context.Background(), "list twice")
	require.NoError(t, err)

	assert.Equal(t, "Still 2 files.", res.Answer)
	assert.Len(t, srv.calls, 2)
	assert.Len(t, res.ToolCalls, 2)
	assert.Len(t, b.prompts[2], 5)
}

func TestRunDiscoveryError(t *testing.T) {
	b := &fakeBackend{replies: []backend.Completion{backend.DirectAnswer{Text: "unused"}}}
	srv := newDesktopServer()
	srv.listErr = errors.New("connection refused")

	res, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
	assert.Nil(t, res)
	requireKind(t, err, KindDiscovery)
	assert.Contains(t, err.Error(), "desktop")
	assert.Empty(t, b.prompts, "backend must not be prompted without a catalog")
}

func TestRunToolExecutionErrors(t *testing.T) {
	tests := []struct {
		name    string
		toolErr string
		callErr error
	}{
		{"tool reports error", "failed to open directory /home/me/Desktop: permission denied", nil},
		{"tool server unreachable", "", errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{replies: []backend.Completion{listCall(), backend.DirectAnswer{Text: "unused"}}}
			srv := newDesktopServer()
			srv.toolErr = tt.toolErr
			srv.callErr = tt.callErr

			res, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
			assert.Nil(t, res)
			requireKind(t, err, KindToolExecution)
			assert.Len(t, b.prompts, 1, "no partial answer is synthesized")
		})
	}
}

func TestRunBackendErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			"unreachable",
			&backend.Error{Kind: backend.KindConnection, Err: errors.New("connection refused")},
			KindBackendConnection,
		},
		{
			"unparseable",
			&backend.Error{Kind: backend.KindProtocol, Err: errors.New("invalid character")},
			KindBackendProtocol,
		},
		{"unclassified", errors.New("boom"), KindBackendProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{errs: []error{tt.err}}
			srv := newDesktopServer()

			res, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
			assert.Nil(t, res)
			requireKind(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, srv.calls)
		})
	}
}

func TestRunBackendErrorOnFinalPrompt(t *testing.T) {
	b := &fakeBackend{
		replies: []backend.Completion{listCall()},
		errs:    []error{nil, &backend.Error{Kind: backend.KindConnection, Err: errors.New("EOF")}},
	}
	srv := newDesktopServer()

	_, err := newTestAgent(t, b, srv).Run(context.Background(), "what files are there")
	requireKind(t, err, KindBackendConnection)
	assert.Len(t, srv.calls, 1)
}
