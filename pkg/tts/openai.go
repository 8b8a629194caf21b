package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/retry"
)

// openAIProvider speaks the OpenAI-compatible /audio/speech protocol. Any
// endpoint implementing it works through TTS_BASE_URL.
type openAIProvider struct {
	apiKey     string
	baseURL    string
	minBytes   int64
	httpClient *http.Client
}

func newOpenAIProvider(cfg *config.TTSConfig, client *http.Client) *openAIProvider {
	return &openAIProvider{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		minBytes:   cfg.MinFileSizeBytes,
		httpClient: client,
	}
}

func (p *openAIProvider) Name() string { return ProviderOpenAI }

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize streams one speech response into outPath.
func (p *openAIProvider) Synthesize(ctx context.Context, text string, voice Voice, outPath string) error {
	body, err := json.Marshal(speechRequest{
		Model:          "tts-1",
		Input:          text,
		Voice:          voice.VoiceName,
		Speed:          voice.SpeakingRate,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return fmt.Errorf("encoding speech request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building speech request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return &retry.Transient{Err: fmt.Errorf("speech request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("speech request returned %d: %s", resp.StatusCode, string(msg))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return &retry.Transient{Err: err}
		}
		return err
	}

	return writeAudioFile(resp.Body, outPath, p.minBytes)
}

// writeAudioFile streams audio to disk and enforces the minimum size
// threshold, removing undersized output.
func writeAudioFile(r io.Reader, outPath string, minBytes int64) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("creating audio directory: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating audio file: %w", err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(outPath)
		return &retry.Transient{Err: fmt.Errorf("writing audio file: %w", copyErr)}
	}
	if closeErr != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("closing audio file: %w", closeErr)
	}
	if n < minBytes {
		_ = os.Remove(outPath)
		return fmt.Errorf("%w: %d bytes", ErrAudioTooSmall, n)
	}
	return nil
}
