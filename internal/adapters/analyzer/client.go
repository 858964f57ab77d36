// Package analyzer provides the HTTP client for the external AI metrics analyzer.
//
// Every call carries a bounded timeout. Any failure — timeout, transport
// error, malformed response — is reported as an error and handled by the
// scoring engine's heuristic fallback; nothing here is user-visible.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/planetforge/engine/internal/domain/model"
)

// Default client configuration constants.
const (
	defaultTimeout = 2 * time.Second
	analyzePath    = "/v1/analyze"
)

// Client calls the external analyzer service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an analyzer client with a bounded per-call timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// analyzeRequest mirrors the analyzer's metrics payload.
type analyzeRequest struct {
	Lines            int     `json:"lines"`
	Functions        int     `json:"functions"`
	Classes          int     `json:"classes"`
	Comments         int     `json:"comments"`
	Complexity       float64 `json:"complexity"`
	Language         string  `json:"language"`
	HasErrorHandling bool    `json:"has_error_handling"`
	HasAsync         bool    `json:"has_async"`
}

// analyzeResponse mirrors the analyzer's structured result.
type analyzeResponse struct {
	SkillDeltas  map[string]float64 `json:"skill_deltas"`
	CodingStyle  string             `json:"coding_style"`
	TraitUpdates map[string]float64 `json:"trait_updates"`
	Insights     []string           `json:"insights"`
	ModelUsed    string             `json:"model_used"`
}

// Analyze submits a metrics sample and returns the structured analysis.
func (c *Client) Analyze(ctx context.Context, sample model.MetricsSample) (model.Analysis, error) {
	body, err := json.Marshal(analyzeRequest{
		Lines:            sample.Lines,
		Functions:        sample.Functions,
		Classes:          sample.Classes,
		Comments:         sample.Comments,
		Complexity:       sample.Complexity,
		Language:         sample.Language,
		HasErrorHandling: sample.HasErrorHandling,
		HasAsync:         sample.HasAsync,
	})
	if err != nil {
		return model.Analysis{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(body))
	if err != nil {
		return model.Analysis{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return model.Analysis{}, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return model.Analysis{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return model.Analysis{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return model.Analysis{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if len(parsed.SkillDeltas) == 0 {
		return model.Analysis{}, fmt.Errorf("%w: empty skill deltas", ErrMalformed)
	}

	deltas := make(model.SkillSet, len(model.Skills()))
	for _, k := range model.Skills() {
		deltas[k] = parsed.SkillDeltas[string(k)]
	}

	return model.Analysis{
		SkillDeltas: deltas,
		CodingStyle: parsed.CodingStyle,
		Suggestions: parsed.Insights,
		Traits:      parsed.TraitUpdates,
	}, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
