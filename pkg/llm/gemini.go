package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.0-flash"

// Gemini creates its genai client on first use so that building the
// backend never touches the network.
type Gemini struct {
	apiKey string
	model  string

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{apiKey: apiKey, model: model}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) IsAvailable() bool { return g.apiKey != "" }

func (g *Gemini) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !g.IsAvailable() {
		return "", &BackendError{Backend: g.Name(), Kind: KindAuth, Err: ErrUnavailable}
	}
	g.once.Do(func() {
		g.client, g.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  g.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if g.initErr != nil {
		return "", &BackendError{Backend: g.Name(), Kind: KindAuth, Err: fmt.Errorf("failed to create genai client: %w", g.initErr)}
	}

	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", networkError(g.Name(), err)
	}
	text := resp.Text()
	if text == "" {
		return "", responseError(g.Name(), errors.New("empty response from Gemini"))
	}
	return text, nil
}
