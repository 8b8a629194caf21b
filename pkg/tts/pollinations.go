package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/retry"
)

// pollinationsURLLimit caps the encoded text length; the provider takes the
// text in the URL path.
const pollinationsURLLimit = 4000

// pollinationsProvider fetches speech over a simple HTTP GET API.
type pollinationsProvider struct {
	baseURL    string
	minBytes   int64
	httpClient *http.Client
}

func newPollinationsProvider(cfg *config.TTSConfig, client *http.Client) *pollinationsProvider {
	base := cfg.BaseURL
	if base == "" || strings.Contains(base, "api.openai.com") {
		base = "https://text.pollinations.ai"
	}
	return &pollinationsProvider{
		baseURL:    strings.TrimRight(base, "/"),
		minBytes:   cfg.MinFileSizeBytes,
		httpClient: client,
	}
}

func (p *pollinationsProvider) Name() string { return ProviderPollinations }

// Synthesize fetches one speech response into outPath.
func (p *pollinationsProvider) Synthesize(ctx context.Context, text string, voice Voice, outPath string) error {
	encoded := url.PathEscape(text)
	if len(encoded) > pollinationsURLLimit {
		return fmt.Errorf("text too long for pollinations url: %d encoded chars", len(encoded))
	}

	reqURL := fmt.Sprintf("%s/%s?model=openai-audio&voice=%s",
		p.baseURL, encoded, url.QueryEscape(voice.VoiceName))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building speech request: %w", err)
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

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "audio/") {
		return fmt.Errorf("speech response has unexpected content type %q", ct)
	}

	return writeAudioFile(resp.Body, outPath, p.minBytes)
}
