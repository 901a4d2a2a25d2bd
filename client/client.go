// Package client provides a client for the REST API of a deskmcp tool server.
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deskmcp/deskmcp/internal/api"
)

// Client represents a client for interacting with the deskmcp tool server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new deskmcp client.
// If httpClient is nil, http.DefaultClient is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the base URL of the tool server
func (c *Client) BaseURL() string {
	return c.baseURL
}

// constructAPIEndpoint constructs the full API endpoint URL from the base URL and the given suffix path.
func (c *Client) constructAPIEndpoint(suffixPath string) (string, error) {
	return url.JoinPath(c.baseURL, api.V0ApiPathPrefix, suffixPath)
}

func (c *Client) newRequest(method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// parseErrorResponse turns a non-success response into an error.
// The tool server reports errors as {"error": "..."}, anything else is returned as is.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errResp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return fmt.Errorf("request failed with status: %d, message: %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("request failed with status: %d, message: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
