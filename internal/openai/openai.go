package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/your-org/pizzeria-agent/internal/models"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

// Client wraps HTTP calls to the OpenAI chat completions API. The whole
// transcript is replayed on every call; temperature is pinned to zero and
// output is capped so the remote API bounds generation time.
type Client struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	http      *http.Client
}

// New returns a new Client for the given model.
func New(apiKey, model string, maxTokens int) *Client {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	return &Client{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   completionsURL,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL overrides the completions endpoint (tests, proxies).
func (c *Client) WithBaseURL(u string) *Client {
	if u != "" {
		c.baseURL = u
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.http = h
	}
	return c
}

// ChatCompletion sends the ordered transcript and returns the first choice's
// text. Any transport or API failure surfaces as an error; the caller decides
// whether to mask it behind a fallback reply.
func (c *Client) ChatCompletion(ctx context.Context, msgs []models.ChatMessage) (string, error) {
	body := map[string]any{
		"model":       c.model,
		"temperature": 0,
		"max_tokens":  c.maxTokens,
		"messages":    msgs,
	}
	buf, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(buf))
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no completion choices")
	}
	return out.Choices[0].Message.Content, nil
}
