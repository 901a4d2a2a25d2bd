package agent

import (
	"fmt"

	"github.com/deskmcp/deskmcp/internal/service/mcp"
	"github.com/deskmcp/deskmcp/pkg/types"
)

type catalogEntry struct {
	server ToolServer
	// toolName is the name of the tool on its own server
	toolName string
}

// Catalog is the ordered set of tools discovered across all tool servers.
// When two servers expose a tool with the same name, the first one keeps the plain name
// and the later one is exposed as <server>__<tool>.
type Catalog struct {
	tools []types.Tool
	index map[string]catalogEntry
}

func newCatalog() *Catalog {
	return &Catalog{index: make(map[string]catalogEntry)}
}

// add appends a tool of server to the catalog.
// It fails if neither the plain nor the prefixed name is free, since the model could not tell the tools apart.
func (c *Catalog) add(server ToolServer, tool types.Tool) error {
	exposed := tool.Name
	if _, exists := c.index[exposed]; exists {
		exposed = mcp.MergeServerToolNames(server.Name(), tool.Name)
		if _, exists := c.index[exposed]; exists {
			return fmt.Errorf("tool %s of tool server %s conflicts with an already discovered tool named %s",
				tool.Name, server.Name(), exposed)
		}
	}
	c.index[exposed] = catalogEntry{server: server, toolName: tool.Name}

	tool.Name = exposed
	c.tools = append(c.tools, tool)
	return nil
}

// Tools returns the tool descriptors in discovery order, with their exposed names.
func (c *Catalog) Tools() []types.Tool {
	out := make([]types.Tool, len(c.tools))
	copy(out, c.tools)
	return out
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Resolve finds the server owning the tool exposed as name, and the tool's name on that server.
func (c *Catalog) Resolve(name string) (ToolServer, string, bool) {
	e, ok := c.index[name]
	if !ok {
		return nil, "", false
	}
	return e.server, e.toolName, true
}
