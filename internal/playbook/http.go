package playbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// HTTPClient retrieves playbook entries from a remote RAG service over
// HTTP. Every request carries a fresh correlation ID so the remote side
// can tie retrieval requests back to this agent's logs.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	fallback   Retriever // used when the remote call fails, may be nil
}

// NewHTTPClient creates an HTTPClient against baseURL. fallback, if
// non-nil, is consulted whenever the remote call errors or times out so a
// playbook-service outage never blocks a reasoning cycle.
func NewHTTPClient(baseURL string, fallback Retriever) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 3 * time.Second,
		},
		fallback: fallback,
	}
}

type httpRequest struct {
	CorrelationID string `json:"correlation_id"`
	Dimension     string `json:"dimension"`
	PatternKind   string `json:"pattern_kind"`
	TopK          int    `json:"top_k"`
}

type httpResponse struct {
	Entries []Entry `json:"entries"`
}

// Retrieve calls the remote playbook service, falling back to c.fallback
// (if configured) on any error.
func (c *HTTPClient) Retrieve(ctx context.Context, q Query) ([]Entry, error) {
	entries, err := c.retrieveRemote(ctx, q)
	if err == nil {
		return entries, nil
	}
	if c.fallback != nil {
		return c.fallback.Retrieve(ctx, q)
	}
	return nil, fmt.Errorf("playbook: remote retrieval failed and no fallback configured: %w", err)
}

func (c *HTTPClient) retrieveRemote(ctx context.Context, q Query) ([]Entry, error) {
	body, err := json.Marshal(httpRequest{
		CorrelationID: uuid.NewString(),
		Dimension:     q.Dimension,
		PatternKind:   q.PatternKind,
		TopK:          q.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("playbook: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/retrieve", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("playbook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("playbook: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playbook: remote returned status %d", resp.StatusCode)
	}

	var out httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("playbook: decode response: %w", err)
	}
	return out.Entries, nil
}
