package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/deskmcp/deskmcp/pkg/types"
)

// toolParameters renders the input schema of a tool as the JSON schema object expected
// by function-calling models.
func toolParameters(t types.Tool) map[string]any {
	schemaType := t.InputSchema.Type
	if schemaType == "" {
		schemaType = "object"
	}
	properties := t.InputSchema.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	params := map[string]any{
		"type":       schemaType,
		"properties": properties,
	}
	if len(t.InputSchema.Required) > 0 {
		params["required"] = t.InputSchema.Required
	}
	return params
}

// decodeArguments parses the JSON encoded arguments of a tool call.
// Models without arguments to pass send "", "{}" or "null".
func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("tool call arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func encodeArguments(args map[string]any) (string, error) {
	if args == nil {
		return "{}", nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool call arguments: %w", err)
	}
	return string(b), nil
}
