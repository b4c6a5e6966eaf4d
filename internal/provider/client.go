// Package provider talks to the OpenAI-compatible chat-completions
// gateways (Groq, OpenAI, OpenRouter) used for vision extraction and
// decision summarization.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chartsight/internal/logger"
)

// ChatRequest is one chat-completion call. Images are data URLs
// attached as image_url parts; the response is always requested as a
// JSON object.
type ChatRequest struct {
	Purpose     string // extraction / decision, for log attribution
	System      string
	User        string
	Images      []string
	Temperature float64
}

// Client calls a single /chat/completions endpoint with bounded
// retries on 429/5xx.
type Client struct {
	Label      string
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int

	// ExtraHeaders lets a gateway require attribution headers
	// (OpenRouter's HTTP-Referer, for example).
	ExtraHeaders map[string]string
}

// Name identifies the provider in logs and response annotations.
func (c *Client) Name() string { return c.Label }

// ChatJSON performs the call and returns the raw message content.
func (c *Client) ChatJSON(ctx context.Context, req ChatRequest) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return "", fmt.Errorf("encoding chat payload: %w", err)
	}
	url := c.endpoint()
	logger.Debugf("[provider] POST %s model=%s purpose=%s key=%s images=%d",
		url, c.Model, req.Purpose, maskKey(c.APIKey), len(req.Images))
	logger.LogLLMRequest(c.Label, req.Purpose, req.System, req.User, len(req.Images), string(body))

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		for k, v := range c.ExtraHeaders {
			httpReq.Header.Set(k, v)
		}

		resp, err := httpc.Do(httpReq)
		if err != nil {
			return "", fmt.Errorf("%s chat request failed: %w", c.Label, err)
		}

		if resp.StatusCode/100 == 2 {
			content, err := decodeContent(resp)
			if err != nil {
				return "", fmt.Errorf("%s chat response: %w", c.Label, err)
			}
			logger.LogLLMResponse(c.Label, req.Purpose, content)
			return content, nil
		}

		msg := decodeError(resp)
		lastErr = fmt.Errorf("%s status=%d: %s", c.Label, resp.StatusCode, msg)
		if !retryable(resp.StatusCode) || attempt == maxRetries {
			break
		}
		wait := retryAfter(resp)
		if wait == 0 {
			wait = (800 * time.Millisecond) << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func (c *Client) buildPayload(req ChatRequest) map[string]any {
	messages := []map[string]any{}
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	if len(req.Images) == 0 {
		messages = append(messages, map[string]any{"role": "user", "content": req.User})
	} else {
		parts := []map[string]any{{"type": "text", "text": req.User}}
		for _, url := range req.Images {
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": url},
			})
		}
		messages = append(messages, map[string]any{"role": "user", "content": parts})
	}
	return map[string]any{
		"model":           c.Model,
		"messages":        messages,
		"temperature":     req.Temperature,
		"response_format": map[string]any{"type": "json_object"},
	}
}

// endpoint normalizes BaseURL so a configured ".../chat/completions"
// does not end up doubled.
func (c *Client) endpoint() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func decodeContent(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, nil
}

func decodeError(resp *http.Response) string {
	defer resp.Body.Close()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&eresp)
	if msg := strings.TrimSpace(eresp.Error.Message); msg != "" {
		return msg
	}
	return resp.Status
}

func retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

func maskKey(key string) string {
	if key == "" {
		return "<none>"
	}
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
