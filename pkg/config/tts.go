package config

import "time"

// TTSConfig controls text-to-speech provider calls.
type TTSConfig struct {
	// APIKey authenticates against the OpenAI-compatible speech endpoint.
	APIKey string

	// BaseURL is the OpenAI-compatible speech endpoint.
	BaseURL string

	// ChunkCharLimit is the max characters sent in a single provider call.
	// Longer chunks are split at sentence boundaries.
	ChunkCharLimit int

	// RequestTimeout bounds a single provider HTTP request.
	RequestTimeout time.Duration

	// RetryAttempts and RetryWait define the fixed-backoff retry policy for
	// transient provider errors.
	RetryAttempts int
	RetryWait     time.Duration

	// MinFileSizeBytes is the smallest output treated as valid audio.
	MinFileSizeBytes int64

	// VoiceConfigFile points at the JSON voice configuration table.
	VoiceConfigFile string
}

// DefaultTTSConfig returns the built-in TTS defaults.
func DefaultTTSConfig() *TTSConfig {
	return &TTSConfig{
		BaseURL:          "https://api.openai.com/v1",
		ChunkCharLimit:   500,
		RequestTimeout:   120 * time.Second,
		RetryAttempts:    3,
		RetryWait:        5 * time.Second,
		MinFileSizeBytes: 100,
		VoiceConfigFile:  "./voice_config.json",
	}
}

// LoadTTSConfig applies environment overrides to the defaults.
func LoadTTSConfig() *TTSConfig {
	cfg := DefaultTTSConfig()
	cfg.APIKey = getEnv("TTS_API_KEY", cfg.APIKey)
	cfg.BaseURL = getEnv("TTS_BASE_URL", cfg.BaseURL)
	cfg.ChunkCharLimit = getEnvInt("TTS_CHUNK_CHAR_LIMIT", cfg.ChunkCharLimit)
	cfg.VoiceConfigFile = getEnv("VOICE_CONFIG_FILE", cfg.VoiceConfigFile)
	return cfg
}
