package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	ollamaDefaultModel = "llama3.1"
	OllamaDefaultURL   = "http://localhost:11434"
)

type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllama(baseURL, model string) *Ollama {
	if model == "" {
		model = ollamaDefaultModel
	}
	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) IsAvailable() bool { return o.baseURL != "" }

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

func (o *Ollama) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !o.IsAvailable() {
		return "", &BackendError{Backend: o.Name(), Kind: KindNetwork, Err: ErrUnavailable}
	}
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		System:  systemPrompt,
		Stream:  false,
		Format:  "json",
		Options: map[string]interface{}{"temperature": 0},
	})
	if err != nil {
		return "", responseError(o.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", responseError(o.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", networkError(o.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", networkError(o.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(o.Name(), resp.StatusCode, body)
	}

	var out ollamaGenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", responseError(o.Name(), err)
	}
	if out.Error != "" {
		return "", responseError(o.Name(), errors.New(out.Error))
	}
	if out.Response == "" {
		return "", responseError(o.Name(), errors.New("empty response from Ollama"))
	}
	return out.Response, nil
}
