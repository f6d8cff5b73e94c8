package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

const openAIDefaultModel = "gpt-4o-mini"

type OpenAI struct {
	apiKey string
	client *openai.Client
	model  string
}

func NewOpenAI(apiKey string) *OpenAI {
	return NewOpenAIWithModel(apiKey, openAIDefaultModel, "")
}

// NewOpenAIWithModel builds a client; baseURL may point at any
// OpenAI-compatible endpoint and is optional.
func NewOpenAIWithModel(apiKey, model, baseURL string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		apiKey: apiKey,
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) IsAvailable() bool { return o.apiKey != "" }

// GetModel returns the model being used by this OpenAI client
func (o *OpenAI) GetModel() string {
	return o.model
}

func (o *OpenAI) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if !o.IsAvailable() {
		return "", &BackendError{Backend: o.Name(), Kind: KindAuth, Err: ErrUnavailable}
	}
	var messages []openai.ChatCompletionMessage
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: 0,
	})
	if err != nil {
		return "", o.classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", responseError(o.Name(), errors.New("empty response from OpenAI"))
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &BackendError{Backend: o.Name(), Kind: KindForStatus(apiErr.HTTPStatusCode), StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &BackendError{Backend: o.Name(), Kind: KindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return networkError(o.Name(), err)
}
