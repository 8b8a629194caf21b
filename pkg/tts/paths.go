package tts

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeName replaces characters outside [A-Za-z0-9_-] with underscores so
// script names are safe as directory and file names.
func SanitizeName(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	if s == "" {
		return "script"
	}
	return s
}

// ChunkAudioPath builds the deterministic output path for one chunk:
// <root>/<safe>/<safe>_section_<idx>_<ts>_<lang>.mp3
func ChunkAudioPath(root, scriptName string, sectionIndex int, languageCode string) string {
	safe := SanitizeName(scriptName)
	file := fmt.Sprintf("%s_section_%d_%d_%s.mp3",
		safe, sectionIndex, time.Now().Unix(), SanitizeName(languageCode))
	return filepath.Join(root, safe, file)
}

// CombinedAudioPath builds the final concatenated output path:
// <root>/<safe>/<safe>_combined_<generationID>.mp3
func CombinedAudioPath(root, scriptName, generationID string) string {
	safe := SanitizeName(scriptName)
	file := fmt.Sprintf("%s_combined_%s.mp3", safe, SanitizeName(generationID))
	return filepath.Join(root, safe, file)
}
