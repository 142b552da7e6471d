package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ServerClient is a minimal HTTP client for a running medstockd.
type ServerClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewServerClient creates a client for the given endpoint.
func NewServerClient(baseURL, token string) *ServerClient {
	return &ServerClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// HealthInfo is the server's /health response.
type HealthInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health fetches the server's health status.
func (s *ServerClient) Health(ctx context.Context) (*HealthInfo, error) {
	return s.getStatus(ctx, "/health")
}

// Ready reports whether the server can reach its database.
func (s *ServerClient) Ready(ctx context.Context) (*HealthInfo, error) {
	return s.getStatus(ctx, "/ready")
}

func (s *ServerClient) getStatus(ctx context.Context, path string) (*HealthInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info HealthInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("unexpected response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return &info, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return &info, nil
}
