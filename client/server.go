package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/deskmcp/deskmcp/pkg/types"
)

// Health checks whether the tool server is up
func (c *Client) Health() (*types.HealthStatus, error) {
	return getJSON[types.HealthStatus](c, c.baseURL+"/health")
}

// Metadata fetches the metadata of the tool server, such as its version
func (c *Client) Metadata() (*types.ServerMetadata, error) {
	return getJSON[types.ServerMetadata](c, c.baseURL+"/metadata")
}

func getJSON[T any](c *Client, u string) (*T, error) {
	req, err := c.newRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request to %s: %w", u, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &v, nil
}
