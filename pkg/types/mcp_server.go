package types

import "fmt"

// McpServerTransport represents the transport protocol used to reach an MCP tool server.
// All transport types supported by deskmcp are defined in this file with this type.
type McpServerTransport string

const (
	TransportStreamableHTTP McpServerTransport = "streamable_http"
	TransportSSE            McpServerTransport = "sse"
)

// ServerMetadata represents the server metadata response
type ServerMetadata struct {
	Version string `json:"version"`
}

// HealthStatus represents the response of the health endpoint
type HealthStatus struct {
	Status string `json:"status"`
}

// ValidateTransport validates the input string and returns the corresponding McpServerTransport.
// If the input is empty, SSE is assumed because that is what the bundled tool server speaks by default.
func ValidateTransport(input string) (McpServerTransport, error) {
	switch input {
	case string(TransportStreamableHTTP):
		return TransportStreamableHTTP, nil
	case string(TransportSSE), "":
		return TransportSSE, nil
	default:
		return "", fmt.Errorf(
			"unsupported transport type: %s (acceptable values: '%s', '%s')",
			input, TransportSSE, TransportStreamableHTTP,
		)
	}
}
