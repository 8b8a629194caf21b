// Package tts turns script chunks into MP3 files through pluggable
// speech providers.
package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/scriptorium/scriptorium/pkg/config"
)

// Provider names recognized in voice configuration.
const (
	ProviderOpenAI       = "openai"
	ProviderPollinations = "pollinations"
)

// Sentinel errors for provider operations.
var (
	// ErrUnknownProvider is returned for a provider name with no
	// implementation.
	ErrUnknownProvider = errors.New("unknown tts provider")

	// ErrAudioTooSmall indicates the provider produced a file below the
	// minimum size threshold; the output has already been deleted.
	ErrAudioTooSmall = errors.New("audio output below minimum size")
)

// Voice is the synthesis configuration for one language.
type Voice struct {
	Provider     string  `json:"provider"`
	VoiceName    string  `json:"voice_name"`
	LanguageCode string  `json:"language_code"`
	SpeakingRate float64 `json:"speaking_rate"`
}

// Provider synthesizes speech for one piece of text, writing an MP3 file to
// outPath. Implementations wrap transient failures in retry.Transient so the
// synthesizer's retry policy re-attempts them.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice, outPath string) error
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg *config.TTSConfig) (Provider, error) {
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	switch name {
	case ProviderOpenAI:
		return newOpenAIProvider(cfg, httpClient), nil
	case ProviderPollinations:
		return newPollinationsProvider(cfg, httpClient), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}

// Registry holds the instantiated providers, keyed by name.
type Registry map[string]Provider

// NewRegistry instantiates every known provider.
func NewRegistry(cfg *config.TTSConfig) Registry {
	reg := Registry{}
	for _, name := range []string{ProviderOpenAI, ProviderPollinations} {
		p, err := NewProvider(name, cfg)
		if err != nil {
			continue
		}
		reg[name] = p
	}
	return reg
}

// Lookup returns the provider for a voice, defaulting to OpenAI when the
// configured provider is unknown.
func (r Registry) Lookup(name string) (Provider, error) {
	if p, ok := r[name]; ok {
		return p, nil
	}
	if p, ok := r[ProviderOpenAI]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}
