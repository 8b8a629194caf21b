package config

import "time"

// LLMConfig controls the language model client.
type LLMConfig struct {
	// APIKey authenticates against the OpenAI-compatible endpoint.
	APIKey string

	// BaseURL optionally redirects calls to a compatible endpoint.
	BaseURL string

	// DefaultModel is used when a generation does not name a model.
	DefaultModel string

	// RequestTimeout bounds a single completion request.
	RequestTimeout time.Duration

	// RetryAttempts and RetryWait define the fixed-backoff retry policy for
	// transient provider errors.
	RetryAttempts int
	RetryWait     time.Duration
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		DefaultModel:   "gpt-4o-mini",
		RequestTimeout: 120 * time.Second,
		RetryAttempts:  3,
		RetryWait:      5 * time.Second,
	}
}

// LoadLLMConfig applies environment overrides to the defaults.
// OPENAI_API_KEY is required.
func LoadLLMConfig() (*LLMConfig, error) {
	cfg := DefaultLLMConfig()
	key, err := requireEnv("OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	cfg.APIKey = key
	cfg.BaseURL = getEnv("OPENAI_BASE_URL", cfg.BaseURL)
	cfg.DefaultModel = getEnv("OPENAI_MODEL", cfg.DefaultModel)
	return cfg, nil
}
