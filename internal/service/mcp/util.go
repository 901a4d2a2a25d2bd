package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/deskmcp/deskmcp/pkg/version"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	// serverToolNameSep is the separator used to combine server name and tool name.
	// The combination is only used when two tool servers advertise a tool with the same name.
	serverToolNameSep = "__"

	sseEndpointPath            = "/sse"
	streamableHTTPEndpointPath = "/mcp"
)

// Only allow letters, numbers, hyphens, and underscores
var validServerName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateServerName checks if the tool server name is valid.
// Server name must not contain double underscores `__`.
// When two servers expose a tool with the same name, the later one is exposed as
// `<server_name>__<tool_name>`, so the name must keep that form unambiguous.
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("invalid server name: '%s' must not be empty", name)
	}
	if !validServerName.MatchString(name) {
		return fmt.Errorf("invalid server name: '%s' must follow the regular expression %s", name, validServerName)
	}
	if strings.Contains(name, serverToolNameSep) {
		return fmt.Errorf("invalid server name: '%s' must not contain multiple consecutive underscores", name)
	}
	if strings.HasSuffix(name, string(serverToolNameSep[0])) {
		// Don't allow a trailing underscore in server name.
		// This avoids situations like this: `files_` + `list` -> `files___list`
		//  splitting this would result in: `files` + `_list` because we always split on
		//  the first occurrence of `__`
		return fmt.Errorf("invalid server name: '%s' must not end with an underscore", name)
	}
	return nil
}

// MergeServerToolNames combines the server name and tool name into a single tool name unique across servers.
func MergeServerToolNames(s, t string) string {
	return s + serverToolNameSep + t
}

// endpointURL derives the MCP endpoint of a tool server from its base URL.
// A URL that already points at the endpoint is returned unchanged.
func endpointURL(baseURL, path string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(trimmed, path) {
		return trimmed
	}
	return trimmed + path
}

// isLoopbackURL returns true if rawURL resolves to a loopback address.
// It assumes that rawURL is a valid URL.
func isLoopbackURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false // invalid URL, cannot determine loopback
	}
	host := u.Hostname()

	if host == "" {
		return false // no host, not a loopback
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

func newInitializeRequest(clientName string) mcp.InitializeRequest {
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: version.GetVersion(),
	}
	initRequest.Params.Capabilities = mcp.ClientCapabilities{}
	return initRequest
}

// initialize performs the MCP handshake and translates the common failure modes into readable errors.
func initialize(ctx context.Context, c *client.Client, rawURL string, initReqTimeoutSec int) error {
	initCtx, cancel := context.WithTimeout(ctx, time.Duration(initReqTimeoutSec)*time.Second)
	defer cancel()

	_, err := c.Initialize(initCtx, newInitializeRequest("deskmcp agent for "+rawURL))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("initialization request to tool server timed out after %d seconds", initReqTimeoutSec)
		}
		return connectionError(rawURL, err)
	}
	return nil
}

func connectionError(rawURL string, err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) && isLoopbackURL(rawURL) {
		return fmt.Errorf(
			"connection to the tool server %s was refused, make sure `deskmcp serve` is running: %w",
			rawURL, err,
		)
	}
	return fmt.Errorf("failed to initialize connection with tool server: %w", err)
}

// createHTTPMcpServerConn creates a new connection with a streamable http tool server and returns the client.
func createHTTPMcpServerConn(ctx context.Context, baseURL string, initReqTimeoutSec int) (*client.Client, error) {
	u := endpointURL(baseURL, streamableHTTPEndpointPath)

	c, err := client.NewStreamableHttpClient(u)
	if err != nil {
		return nil, fmt.Errorf("failed to create streamable HTTP client for tool server: %w", err)
	}

	if err := initialize(ctx, c, u, initReqTimeoutSec); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// createSSEMcpServerConn creates a new connection with an SSE transport-based tool server and returns the client.
func createSSEMcpServerConn(ctx context.Context, baseURL string, initReqTimeoutSec int) (*client.Client, error) {
	u := endpointURL(baseURL, sseEndpointPath)

	c, err := client.NewSSEMCPClient(u)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE client for tool server: %w", err)
	}

	// the SSE stream lives as long as ctx, so it must not be bound to the handshake timeout
	if err = c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, connectionError(u, fmt.Errorf("failed to start SSE transport: %w", err))
	}

	if err := initialize(ctx, c, u, initReqTimeoutSec); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
