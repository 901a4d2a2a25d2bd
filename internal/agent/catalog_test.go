package agent

import (
	"context"
	"testing"

	"github.com/deskmcp/deskmcp/internal/backend"
	"github.com/deskmcp/deskmcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverMergesServers(t *testing.T) {
	desktop := newDesktopServer()
	files := &fakeToolServer{
		name: "files",
		tools: []types.Tool{
			{Name: "list_desktop_files"},
			{Name: "read_file"},
		},
		output: []string{"c.md"},
	}

	a, err := New(&fakeBackend{}, []ToolServer{desktop, files}, nil)
	require.NoError(t, err)

	catalog, err := a.Discover(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, catalog.Len())

	names := make([]string, 0, catalog.Len())
	for _, tool := range catalog.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"list_desktop_files", "files__list_desktop_files", "read_file"}, names)

	s, name, ok := catalog.Resolve("files__list_desktop_files")
	require.True(t, ok)
	assert.Equal(t, "files", s.Name())
	assert.Equal(t, "list_desktop_files", name)

	s, name, ok = catalog.Resolve("list_desktop_files")
	require.True(t, ok)
	assert.Equal(t, "desktop", s.Name())
	assert.Equal(t, "list_desktop_files", name)

	_, _, ok = catalog.Resolve("files__read_file")
	assert.False(t, ok, "only conflicting tools are exposed with a server prefix")
}

func TestDiscoverRejectsUnresolvableConflict(t *testing.T) {
	servers := []ToolServer{
		&fakeToolServer{name: "a", tools: []types.Tool{{Name: "list_desktop_files"}}},
		&fakeToolServer{name: "b", tools: []types.Tool{{Name: "list_desktop_files"}}},
		&fakeToolServer{name: "b", tools: []types.Tool{{Name: "list_desktop_files"}}},
	}
	a, err := New(&fakeBackend{}, servers, nil)
	require.NoError(t, err)

	catalog, err := a.Discover(context.Background())
	assert.Nil(t, catalog)
	requireKind(t, err, KindDiscovery)
	assert.Contains(t, err.Error(), "b__list_desktop_files")
}

func TestCatalogExposedNamesAreUnique(t *testing.T) {
	c := newCatalog()
	a := &fakeToolServer{name: "a"}
	b := &fakeToolServer{name: "b"}
	require.NoError(t, c.add(a, types.Tool{Name: "list_desktop_files"}))
	require.NoError(t, c.add(b, types.Tool{Name: "list_desktop_files"}))
	require.Error(t, c.add(b, types.Tool{Name: "list_desktop_files"}))

	seen := make(map[string]int)
	for _, tool := range c.Tools() {
		seen[tool.Name]++
	}
	assert.Equal(t, map[string]int{"list_desktop_files": 1, "b__list_desktop_files": 1}, seen)
}

func TestCatalogToolsReturnsCopy(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.add(newDesktopServer(), types.Tool{Name: "list_desktop_files"}))

	tools := c.Tools()
	tools[0].Name = "changed"
	assert.Equal(t, "list_desktop_files", c.Tools()[0].Name)
}

func TestRunRoutesPrefixedToolToOwningServer(t *testing.T) {
	desktop := newDesktopServer()
	files := &fakeToolServer{name: "files", tools: []types.Tool{{Name: "list_desktop_files"}}, output: []string{"c.md"}}
	b := &fakeBackend{replies: []backend.Completion{
		backend.ToolCall{ID: "call_1", Name: "files__list_desktop_files"},
		backend.DirectAnswer{Text: "There is 1 file: c.md."},
	}}

	res, err := newTestAgent(t, b, desktop, files).Run(context.Background(), "what files are there")
	require.NoError(t, err)

	assert.Equal(t, "There is 1 file: c.md.", res.Answer)
	assert.Empty(t, desktop.calls)
	require.Len(t, files.calls, 1)
	assert.Equal(t, "list_desktop_files", files.calls[0].name)
	assert.Equal(t, `["c.md"]`, b.prompts[1][3].Content)
}
