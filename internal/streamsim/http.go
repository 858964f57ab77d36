package streamsim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// getJSON performs a GET against the service and decodes the JSON body.
func getJSON[T any](ctx context.Context, cfg *Config, path string) (T, error) {
	var zero T

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+path, nil)
	if err != nil {
		return zero, fmt.Errorf("building request for %s: %w", path, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("requesting %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return zero, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}

	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("decoding %s response: %w", path, err)
	}
	return out, nil
}

// checkServiceHealth verifies the service answers before starting the run.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check: status %d", resp.StatusCode)
	}
	return nil
}
