package llm

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/helmcode/errfriendly/pkg/config"
)

// Provider represents the LLM provider type
type Provider string

const (
	ProviderNone   Provider = config.BackendNone
	ProviderClaude Provider = config.BackendClaude
	ProviderOpenAI Provider = config.BackendOpenAI
	ProviderGemini Provider = config.BackendGemini
	ProviderOllama Provider = config.BackendOllama
)

// Factory creates backends from configuration. The backend built for one set
// of settings is reused until the settings change.
type Factory struct {
	getenv func(string) string

	mu      sync.Mutex
	key     string
	current Backend
}

// NewFactory creates a new LLM factory
func NewFactory() *Factory {
	return &Factory{getenv: os.Getenv}
}

// NewFactoryWithEnv creates a factory that resolves credentials through getenv.
func NewFactoryWithEnv(getenv func(string) string) *Factory {
	return &Factory{getenv: getenv}
}

// GetAvailableProviders returns a list of available LLM providers
func (f *Factory) GetAvailableProviders() []Provider {
	return []Provider{ProviderClaude, ProviderOpenAI, ProviderGemini, ProviderOllama}
}

// Select returns the backend for cfg.
func (f *Factory) Select(cfg *config.Config) (Backend, error) {
	ai := cfg.AI
	key := strings.Join([]string{ai.Backend, ai.Model, ai.APIKey, ai.BaseURL}, "\x00")

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil && f.key == key {
		return f.current, nil
	}
	b, err := f.CreateLLM(Provider(strings.ToLower(ai.Backend)), ai)
	if err != nil {
		return nil, err
	}
	f.key, f.current = key, b
	return b, nil
}

// CreateLLM creates a backend for provider. A missing credential is not an
// error: the backend reports itself unavailable instead.
func (f *Factory) CreateLLM(provider Provider, ai config.AIConfig) (Backend, error) {
	switch provider {
	case ProviderNone, "":
		return None{}, nil

	case ProviderClaude:
		apiKey := f.credential(ai.APIKey, "ANTHROPIC_API_KEY")
		model := firstNonEmpty(ai.Model, f.getenv("CLAUDE_MODEL"), claudeDefaultModel)
		return NewClaudeWithModel(apiKey, model).WithBaseURL(ai.BaseURL), nil

	case ProviderOpenAI:
		apiKey := f.credential(ai.APIKey, "OPENAI_API_KEY")
		model := firstNonEmpty(ai.Model, f.getenv("OPENAI_MODEL"), openAIDefaultModel)
		return NewOpenAIWithModel(apiKey, model, ai.BaseURL), nil

	case ProviderGemini:
		apiKey := f.credential(ai.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
		model := firstNonEmpty(ai.Model, f.getenv("GEMINI_MODEL"), geminiDefaultModel)
		return NewGemini(apiKey, model), nil

	case ProviderOllama:
		baseURL := firstNonEmpty(ai.BaseURL, f.getenv("OLLAMA_BASE_URL"), OllamaDefaultURL)
		model := firstNonEmpty(ai.Model, f.getenv("OLLAMA_MODEL"), ollamaDefaultModel)
		return NewOllama(baseURL, model), nil

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s (supported: none, claude, openai, gemini, ollama)", config.ErrInvalid, provider)
	}
}

func (f *Factory) credential(explicit string, envVars ...string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range envVars {
		if v := strings.TrimSpace(f.getenv(name)); v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
