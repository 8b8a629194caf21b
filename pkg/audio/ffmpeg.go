// Package audio concatenates per-chunk MP3 segments into the final program
// file with ffmpeg.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Output encoding constants.
const (
	Codec      = "libmp3lame"
	Bitrate    = "192k"
	SampleRate = "44100"
)

// ErrNoSegments is returned when no readable segment was available to
// concatenate.
var ErrNoSegments = errors.New("no usable audio segments")

// Concatenator joins ordered MP3 segments into one output file.
type Concatenator interface {
	Concat(ctx context.Context, segments []string, output string) error
}

// FFmpeg is the ffmpeg-backed Concatenator.
type FFmpeg struct {
	// Path is the ffmpeg binary. Empty means "ffmpeg" on PATH.
	Path string

	// MinSegmentBytes is the smallest file accepted as a segment.
	MinSegmentBytes int64
}

// NewFFmpeg returns a concatenator using the given binary path.
func NewFFmpeg(path string, minSegmentBytes int64) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, MinSegmentBytes: minSegmentBytes}
}

// Concat joins the segments in order into output. Unreadable or undersized
// segments are skipped with a warning; the call succeeds as long as at least
// one segment was usable and the export itself succeeded.
func (f *FFmpeg) Concat(ctx context.Context, segments []string, output string) error {
	usable := make([]string, 0, len(segments))
	for _, seg := range segments {
		info, err := os.Stat(seg)
		switch {
		case err != nil:
			slog.Warn("Skipping unreadable audio segment", "segment", seg, "error", err)
		case info.Size() < f.MinSegmentBytes:
			slog.Warn("Skipping undersized audio segment", "segment", seg, "size", info.Size())
		default:
			usable = append(usable, seg)
		}
	}
	if len(usable) == 0 {
		return ErrNoSegments
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	listFile, err := writeConcatList(usable)
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	cmd := exec.CommandContext(ctx, f.Path,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:a", Codec,
		"-b:a", Bitrate,
		"-ar", SampleRate,
		"-y",
		output,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w\n%s", err, stderr.String())
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("concat output not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("concat output is empty")
	}
	return nil
}

// writeConcatList builds the ffmpeg concat demuxer list file.
func writeConcatList(segments []string) (string, error) {
	f, err := os.CreateTemp("", "concat_*.txt")
	if err != nil {
		return "", fmt.Errorf("creating concat list: %w", err)
	}
	var b strings.Builder
	for _, seg := range segments {
		abs, err := filepath.Abs(seg)
		if err != nil {
			abs = seg
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing concat list: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("closing concat list: %w", err)
	}
	return f.Name(), nil
}
