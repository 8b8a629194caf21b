// Package config holds typed configuration for all pipeline components.
// Defaults are built in; environment variables override individual fields.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates the configuration of every component.
type Config struct {
	Store  *StoreConfig
	Queue  *QueueConfig
	Audio  *AudioConfig
	TTS    *TTSConfig
	LLM    *LLMConfig
	Sizing *SizingConfig
}

// Load builds the full configuration from defaults plus environment overrides.
func Load() (*Config, error) {
	store, err := LoadStoreConfig()
	if err != nil {
		return nil, err
	}
	llm, err := LoadLLMConfig()
	if err != nil {
		return nil, err
	}
	return &Config{
		Store:  store,
		Queue:  LoadQueueConfig(),
		Audio:  LoadAudioConfig(),
		TTS:    LoadTTSConfig(),
		LLM:    llm,
		Sizing: DefaultSizingConfig(),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvMinutes reads an integer number of minutes.
func getEnvMinutes(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Minute
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}
