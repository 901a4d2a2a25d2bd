package types

// ToolInputSchema defines the schema for the input parameters of a tool
type ToolInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// Tool describes a tool advertised by a tool server.
// A tool's descriptor is fixed for the lifetime of the server process that advertises it.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema ToolInputSchema `json:"input_schema"`
	Annotations map[string]any  `json:"annotations,omitempty"`
}

// ToolCallResult represents the result of a Tool call.
// Exactly one of Output or Error is meaningful: when Error is non-empty, Output must be ignored.
// An empty (but non-nil) Output is a valid result.
type ToolCallResult struct {
	ToolName string   `json:"tool_name"`
	Output   []string `json:"output"`
	Error    string   `json:"error,omitempty"`
}

// Failed returns true if the tool server reported an error for this call.
func (r *ToolCallResult) Failed() bool {
	return r.Error != ""
}

// InvokeToolRequest is the request body for invoking a tool through the REST API.
type InvokeToolRequest struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}
