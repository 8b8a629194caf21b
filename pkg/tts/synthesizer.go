package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/scriptorium/scriptorium/pkg/audio"
	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/retry"
	"github.com/scriptorium/scriptorium/pkg/textsplit"
)

// Synthesizer produces the MP3 for one script chunk: voice resolution,
// splitting over the provider character limit, per-piece retries, and
// reassembly. The store update is the caller's job and always happens after
// the file work is done.
type Synthesizer struct {
	cfg        *config.TTSConfig
	outputRoot string
	providers  Registry
	voices     *VoiceTable
	concat     audio.Concatenator
}

// NewSynthesizer wires a synthesizer from its parts.
func NewSynthesizer(cfg *config.TTSConfig, outputRoot string, providers Registry, voices *VoiceTable, concat audio.Concatenator) *Synthesizer {
	return &Synthesizer{
		cfg:        cfg,
		outputRoot: outputRoot,
		providers:  providers,
		voices:     voices,
		concat:     concat,
	}
}

// CreateChunkAudio synthesizes one chunk's text into its deterministic path
// and returns that path. On any failure the partial output file is removed.
func (s *Synthesizer) CreateChunkAudio(ctx context.Context, generationID, scriptName, language string, sectionIndex int, text string) (string, error) {
	voice := s.voices.Lookup(language)
	provider, err := s.providers.Lookup(voice.Provider)
	if err != nil {
		return "", err
	}

	outPath := ChunkAudioPath(s.outputRoot, scriptName, sectionIndex, voice.LanguageCode)
	policy := retry.Policy{Attempts: s.cfg.RetryAttempts, Wait: s.cfg.RetryWait}

	pieces := textsplit.Split(text, s.cfg.ChunkCharLimit)
	if len(pieces) == 0 {
		return "", fmt.Errorf("chunk %d has no synthesizable text", sectionIndex)
	}

	if len(pieces) == 1 {
		err := policy.Do(ctx, func() error {
			return provider.Synthesize(ctx, pieces[0], voice, outPath)
		})
		if err != nil {
			_ = os.Remove(outPath)
			return "", fmt.Errorf("synthesizing chunk %d: %w", sectionIndex, err)
		}
		return outPath, nil
	}

	// Multi-piece path: synthesize into a per-chunk temp directory, then
	// reassemble. The temp directory is removed no matter what.
	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("tts_%s_chunk%d_", SanitizeName(generationID), sectionIndex))
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			slog.Warn("Failed to remove tts temp dir", "dir", tmpDir, "error", rmErr)
		}
	}()

	segments := make([]string, 0, len(pieces))
	for i, piece := range pieces {
		segPath := filepath.Join(tmpDir, fmt.Sprintf("part_%03d.mp3", i))
		err := policy.Do(ctx, func() error {
			return provider.Synthesize(ctx, piece, voice, segPath)
		})
		if err != nil {
			return "", fmt.Errorf("synthesizing chunk %d piece %d/%d: %w", sectionIndex, i+1, len(pieces), err)
		}
		segments = append(segments, segPath)
	}

	if err := s.concat.Concat(ctx, segments, outPath); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("assembling chunk %d: %w", sectionIndex, err)
	}
	return outPath, nil
}

// CombineChunks concatenates ready chunk files into the final program MP3
// and returns its path.
func (s *Synthesizer) CombineChunks(ctx context.Context, generationID, scriptName string, chunkPaths []string) (string, error) {
	outPath := CombinedAudioPath(s.outputRoot, scriptName, generationID)
	if err := s.concat.Concat(ctx, chunkPaths, outPath); err != nil {
		return "", fmt.Errorf("combining audio: %w", err)
	}
	return outPath, nil
}
