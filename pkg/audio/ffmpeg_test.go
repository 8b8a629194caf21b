package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSegment(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func TestConcatFailsWithNoUsableSegments(t *testing.T) {
	dir := t.TempDir()
	tiny := writeSegment(t, dir, "tiny.mp3", 10)
	f := NewFFmpeg("ffmpeg", 100)

	err := f.Concat(context.Background(), []string{tiny, filepath.Join(dir, "missing.mp3")}, filepath.Join(dir, "out.mp3"))
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestWriteConcatListEscapesAndOrders(t *testing.T) {
	dir := t.TempDir()
	a := writeSegment(t, dir, "a.mp3", 200)
	b := writeSegment(t, dir, "it's.mp3", 200)

	list, err := writeConcatList([]string{a, b})
	require.NoError(t, err)
	defer os.Remove(list)

	data, err := os.ReadFile(list)
	require.NoError(t, err)
	content := string(data)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a.mp3")
	assert.Contains(t, lines[1], `'\''`)
}

func TestNewFFmpegDefaultsBinary(t *testing.T) {
	f := NewFFmpeg("", 100)
	assert.Equal(t, "ffmpeg", f.Path)
}
