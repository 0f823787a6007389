package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ModelClient scores (query, listing) pairs against the trained
// relevance model served over HTTP.
type ModelClient struct {
	url    string
	apiKey string
	client *http.Client
}

// NewModelClient builds a client for the scoring endpoint. The API key
// is read from the named environment variable; an empty name means the
// service needs no auth.
func NewModelClient(url, apiKeyEnv string) *ModelClient {
	key := ""
	if apiKeyEnv != "" {
		key = os.Getenv(apiKeyEnv)
	}
	return &ModelClient{
		url:    url,
		apiKey: key,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Score posts the pair to the scoring service and returns the match
// probability.
func (c *ModelClient) Score(ctx context.Context, query, listingText string) (float64, error) {
	body, err := json.Marshal(map[string]string{
		"query":   query,
		"listing": listingText,
	})
	if err != nil {
		return 0, fmt.Errorf("marshaling score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("scoring service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("scoring service returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decoding score response: %w", err)
	}

	return result.Score, nil
}
