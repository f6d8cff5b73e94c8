package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	claudeDefaultModel = "claude-sonnet-4-20250514"
	claudeBaseURL      = "https://api.anthropic.com/v1/messages"
	anthropicVersion   = "2023-06-01"
)

type Claude struct {
	apiKey  string
	client  *http.Client
	model   string
	baseURL string
}

func NewClaude(apiKey string) *Claude {
	return NewClaudeWithModel(apiKey, claudeDefaultModel)
}

func NewClaudeWithModel(apiKey, model string) *Claude {
	return &Claude{
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 60 * time.Second},
		model:   model,
		baseURL: claudeBaseURL,
	}
}

// WithBaseURL points the client at another messages endpoint.
func (c *Claude) WithBaseURL(url string) *Claude {
	if url != "" {
		c.baseURL = url
	}
	return c
}

func (c *Claude) Name() string { return "claude" }

func (c *Claude) IsAvailable() bool { return c.apiKey != "" }

func (c *Claude) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !c.IsAvailable() {
		return "", &BackendError{Backend: c.Name(), Kind: KindAuth, Err: ErrUnavailable}
	}
	body := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{{
			"role":    "user",
			"content": prompt,
		}},
		"max_tokens":  2000,
		"temperature": 0,
	}
	if systemPrompt != "" {
		body["system"] = systemPrompt
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", responseError(c.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", responseError(c.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", networkError(c.Name(), err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(c.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.Name(), resp.StatusCode, respBytes)
	}

	// Minimal struct to pull out the content text.
	var claudeResp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &claudeResp); err != nil {
		return "", responseError(c.Name(), err)
	}
	if claudeResp.Error.Message != "" {
		return "", responseError(c.Name(), errors.New(claudeResp.Error.Message))
	}
	for _, block := range claudeResp.Content {
		if block.Text != "" {
			return block.Text, nil
		}
	}
	return "", responseError(c.Name(), errors.New("empty response from Claude"))
}
