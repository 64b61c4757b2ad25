// Package search provides the web search backend used by the research
// pipeline's first stage.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ferret/internal/store"
)

const defaultEndpoint = "https://api.tavily.com/search"

// Client calls the Tavily search API.
type Client struct {
	endpoint   string
	apiKey     string
	maxResults int
	client     *http.Client
}

// New creates a search client. A zero timeout defaults to 30 seconds.
func New(apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		maxResults: 10,
		client:     &http.Client{Timeout: timeout},
	}
}

// Search runs one query and returns the results in pipeline form.
func (c *Client) Search(ctx context.Context, query string) ([]store.SearchResult, error) {
	body := map[string]any{
		"query":           query,
		"search_depth":    "advanced",
		"include_domains": []string{},
		"exclude_domains": []string{},
		"max_results":     c.maxResults,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search call failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var result struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	out := make([]store.SearchResult, 0, len(result.Results))
	for _, r := range result.Results {
		out = append(out, store.SearchResult{Title: r.Title, Content: r.Content, URL: r.URL})
	}
	return out, nil
}
