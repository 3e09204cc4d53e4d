// Package together provides a text-completion client for the Together
// inference API.
package together

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the hosted Together API endpoint.
const DefaultBaseURL = "https://api.together.xyz"

// Client calls the completions endpoint of a Together-compatible service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a completion client. An empty baseURL selects the hosted
// Together API.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// CompletionRequest carries the prompt and decoding parameters.
type CompletionRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokens         int      `json:"max_tokens"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	TopK              int      `json:"top_k"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	Stop              []string `json:"stop,omitempty"`
}

// Choice is a single completion candidate.
type Choice struct {
	Text string `json:"text"`
}

// CompletionResponse is the decoded service response. Choices may be empty;
// callers own the degrade policy for that case.
type CompletionResponse struct {
	Choices []Choice `json:"choices"`
}

// Complete requests a completion. The response is decoded into a typed
// structure at this boundary; a malformed body is an error, not a silent
// empty answer.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("together: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("together: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("together: complete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("together: complete: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var out CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("together: decode response: %w", err)
	}
	return &out, nil
}
