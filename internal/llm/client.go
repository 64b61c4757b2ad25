// Package llm calls an LLM provider's HTTP API to produce the analysis
// and summary text for the research pipeline.
package llm

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

// Config describes which provider to call and how.
type Config struct {
	Provider  string // openai, anthropic, google
	Model     string
	APIKeyEnv string // env var name containing the API key
	Timeout   time.Duration
}

// Client generates text through a provider's HTTP API.
type Client struct {
	cfg    Config
	apiKey string
	client *http.Client
}

// New creates a client, resolving the API key from the environment.
func New(cfg Config) (*Client, error) {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("llm: environment variable %s is not set", cfg.APIKeyEnv)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Client{
		cfg:    cfg,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Generate sends the prompt (and optional system instruction) to the
// configured provider and returns the generated text.
func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	switch c.cfg.Provider {
	case "openai":
		return c.generateOpenAI(ctx, prompt, system)
	case "anthropic":
		return c.generateAnthropic(ctx, prompt, system)
	case "google":
		return c.generateGoogle(ctx, prompt, system)
	default:
		return "", fmt.Errorf("unsupported provider: %s", c.cfg.Provider)
	}
}

// post sends a JSON body and returns the response bytes, treating any
// non-200 status as an error.
func (c *Client) post(ctx context.Context, url string, headers map[string]string, body map[string]any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API call failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", httpResp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// generateOpenAI handles OpenAI-compatible chat completion APIs.
func (c *Client) generateOpenAI(ctx context.Context, prompt, system string) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]any{
		"model":      c.cfg.Model,
		"messages":   messages,
		"max_tokens": 4096,
	}
	respBody, err := c.post(ctx, "https://api.openai.com/v1/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, body)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return result.Choices[0].Message.Content, nil
}

// generateAnthropic handles Anthropic's Messages API.
func (c *Client) generateAnthropic(ctx context.Context, prompt, system string) (string, error) {
	body := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": 4096,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if system != "" {
		body["system"] = system
	}
	respBody, err := c.post(ctx, "https://api.anthropic.com/v1/messages",
		map[string]string{"x-api-key": c.apiKey, "anthropic-version": "2023-06-01"}, body)
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty message response")
	}
	return result.Content[0].Text, nil
}

// generateGoogle handles Google's Generative AI API (Gemini).
func (c *Client) generateGoogle(ctx context.Context, prompt, system string) (string, error) {
	model := c.cfg.Model
	if model == "" {
		model = "gemini-2.5-pro"
	}
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s", model, c.apiKey)

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	if system != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": system}},
		}
	}
	respBody, err := c.post(ctx, url, nil, body)
	if err != nil {
		return "", err
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty generation response")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}
