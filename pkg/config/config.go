package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported backend names.
const (
	BackendNone   = "none"
	BackendClaude = "claude"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

// Explanation depths.
const (
	DepthBeginner     = "beginner"
	DepthIntermediate = "intermediate"
	DepthExpert       = "expert"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type AIConfig struct {
	Enabled              bool          `yaml:"enabled"`
	Backend              string        `yaml:"backend"`
	Model                string        `yaml:"model"`
	APIKey               string        `yaml:"api_key"`
	BaseURL              string        `yaml:"base_url"`
	ExplainDepth         string        `yaml:"explain_depth"`
	Threshold            float64       `yaml:"threshold"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
}

type CacheConfig struct {
	Size int `yaml:"size"`
}

type ContextConfig struct {
	MaxLines             int    `yaml:"max_lines"`
	MaxFrames            int    `yaml:"max_frames"`
	MaxLocals            int    `yaml:"max_locals"`
	MaxValueLength       int    `yaml:"max_value_length"`
	MaxImports           int    `yaml:"max_imports"`
	MaxProjectFiles      int    `yaml:"max_project_files"`
	ProjectRoot          string `yaml:"project_root"`
	IncludeRecentChanges bool   `yaml:"include_recent_changes"`
	MaxChangeLength      int    `yaml:"max_change_length"`
}

type PrivacyConfig struct {
	IncludeLocals       bool     `yaml:"include_locals"`
	IncludeProjectFiles bool     `yaml:"include_project_files"`
	RedactPatterns      []string `yaml:"redact_patterns"`
}

type ChainConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxDepth int  `yaml:"max_depth"`
}

type OutputConfig struct {
	ShowOriginalTraceback bool   `yaml:"show_original_traceback"`
	Format                string `yaml:"format"`
	LogFile               string `yaml:"log_file"`
}

// Config holds every threshold of the pipeline.
type Config struct {
	AI      AIConfig      `yaml:"ai"`
	Cache   CacheConfig   `yaml:"cache"`
	Context ContextConfig `yaml:"context"`
	Privacy PrivacyConfig `yaml:"privacy"`
	Chain   ChainConfig   `yaml:"chain"`
	Output  OutputConfig  `yaml:"output"`
	Debug   bool          `yaml:"debug"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Enabled:              false,
			Backend:              BackendNone,
			ExplainDepth:         DepthIntermediate,
			Threshold:            0.6,
			Timeout:              10 * time.Second,
			MaxRequestsPerMinute: 10,
		},
		Cache: CacheConfig{Size: 128},
		Context: ContextConfig{
			MaxLines:        7,
			MaxFrames:       10,
			MaxLocals:       20,
			MaxValueLength:  200,
			MaxImports:      30,
			MaxProjectFiles: 50,
			MaxChangeLength: 2000,
		},
		Privacy: PrivacyConfig{
			IncludeLocals:       true,
			IncludeProjectFiles: true,
			RedactPatterns:      []string{"password", "passwd", "secret", "token", "api_key", "apikey", "credential", "private_key"},
		},
		Chain:  ChainConfig{Enabled: true, MaxDepth: 50},
		Output: OutputConfig{ShowOriginalTraceback: true, Format: "human"},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Privacy.RedactPatterns = append([]string(nil), c.Privacy.RedactPatterns...)
	return &out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.AI.Backend) {
	case BackendNone, BackendClaude, BackendOpenAI, BackendGemini, BackendOllama:
	default:
		return fmt.Errorf("%w: unsupported backend %q (supported: none, claude, openai, gemini, ollama)", ErrInvalid, c.AI.Backend)
	}
	switch c.AI.ExplainDepth {
	case DepthBeginner, DepthIntermediate, DepthExpert:
	default:
		return fmt.Errorf("%w: explain_depth must be beginner, intermediate or expert, got %q", ErrInvalid, c.AI.ExplainDepth)
	}
	if c.AI.Threshold < 0 || c.AI.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be within [0,1], got %v", ErrInvalid, c.AI.Threshold)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalid)
	}
	if c.AI.MaxRequestsPerMinute < 0 {
		return fmt.Errorf("%w: max_requests_per_minute must not be negative", ErrInvalid)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("%w: cache size must be positive", ErrInvalid)
	}
	positive := map[string]int{
		"context.max_lines":        c.Context.MaxLines,
		"context.max_frames":       c.Context.MaxFrames,
		"context.max_value_length": c.Context.MaxValueLength,
		"chain.max_depth":          c.Chain.MaxDepth,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}
	for _, p := range c.Privacy.RedactPatterns {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			return fmt.Errorf("%w: redact pattern %q: %v", ErrInvalid, p, err)
		}
	}
	switch c.Output.Format {
	case "human", "json", "yaml":
	default:
		return fmt.Errorf("%w: output format must be human, json or yaml, got %q", ErrInvalid, c.Output.Format)
	}
	return nil
}

// Load reads an optional .env file, the YAML file at path (skipped when path
// is empty or missing), then ERRFRIENDLY_* environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.AI.Backend = strings.ToLower(cfg.AI.Backend)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ERRFRIENDLY_BACKEND"); v != "" {
		cfg.AI.Backend = v
		cfg.AI.Enabled = v != BackendNone
	}
	if v := os.Getenv("ERRFRIENDLY_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("ERRFRIENDLY_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("ERRFRIENDLY_DEPTH"); v != "" {
		cfg.AI.ExplainDepth = v
	}
	if v := os.Getenv("ERRFRIENDLY_AI_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AI.Enabled = b
		}
	}
	if v := os.Getenv("ERRFRIENDLY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.AI.Timeout = d
		}
	}
	if v := os.Getenv("ERRFRIENDLY_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// Store is the process-wide holder of the active Config. Components keep
// the Store and call Load on every use, so Update applies to the next
// exception.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore validates cfg and wraps a copy of it. A nil cfg means Default.
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{}
	s.current.Store(cfg.Clone())
	return s, nil
}

// MustStore is NewStore for tests and static setup; it panics on error.
func MustStore(cfg *Config) *Store {
	s, err := NewStore(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Load returns the active configuration. Callers must not modify it.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Update applies fn to a copy of the active configuration and installs it
// if it validates.
func (s *Store) Update(fn func(*Config)) error {
	next := s.Load().Clone()
	fn(next)
	next.AI.Backend = strings.ToLower(next.AI.Backend)
	if err := next.Validate(); err != nil {
		return err
	}
	s.current.Store(next)
	return nil
}
