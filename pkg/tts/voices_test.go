package tts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVoiceConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voices.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadVoiceTableMissingFile(t *testing.T) {
	table, err := LoadVoiceTable(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)

	v := table.Lookup("English")
	assert.Equal(t, ProviderOpenAI, v.Provider)
	assert.Equal(t, "onyx", v.VoiceName)
	assert.Equal(t, 1.0, v.SpeakingRate)
}

func TestLookupExactMatchIsCaseInsensitive(t *testing.T) {
	path := writeVoiceConfig(t, `{
		"Vietnamese": {"provider": "pollinations", "voice_name": "alloy", "language_code": "vi-VN", "speaking_rate": 1.1}
	}`)
	table, err := LoadVoiceTable(path)
	require.NoError(t, err)

	v := table.Lookup("vietnamese")
	assert.Equal(t, ProviderPollinations, v.Provider)
	assert.Equal(t, "vi-VN", v.LanguageCode)
	assert.Equal(t, 1.1, v.SpeakingRate)
}

func TestLookupPartialMatch(t *testing.T) {
	path := writeVoiceConfig(t, `{
		"english (us)": {"provider": "openai", "voice_name": "nova", "language_code": "en-US", "speaking_rate": 1.0}
	}`)
	table, err := LoadVoiceTable(path)
	require.NoError(t, err)

	v := table.Lookup("English")
	assert.Equal(t, "nova", v.VoiceName)
}

func TestLookupFallsBackToDefaultEntry(t *testing.T) {
	path := writeVoiceConfig(t, `{
		"__DEFAULT__": {"provider": "pollinations", "voice_name": "echo", "language_code": "en-GB", "speaking_rate": 0.9}
	}`)
	table, err := LoadVoiceTable(path)
	require.NoError(t, err)

	v := table.Lookup("Swahili")
	assert.Equal(t, "echo", v.VoiceName)
	assert.Equal(t, "en-GB", v.LanguageCode)
	assert.Equal(t, 0.9, v.SpeakingRate)
}

func TestLookupFillsMissingFieldsFromDefault(t *testing.T) {
	path := writeVoiceConfig(t, `{
		"__DEFAULT__": {"provider": "openai", "voice_name": "onyx", "language_code": "en-US", "speaking_rate": 1.0},
		"japanese": {"voice_name": "sakura", "language_code": "ja-JP"}
	}`)
	table, err := LoadVoiceTable(path)
	require.NoError(t, err)

	v := table.Lookup("Japanese")
	assert.Equal(t, ProviderOpenAI, v.Provider)
	assert.Equal(t, "sakura", v.VoiceName)
	assert.Equal(t, 1.0, v.SpeakingRate)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Ancient_Wisdom_for_Modern_Life", SanitizeName("Ancient Wisdom for Modern Life"))
	assert.Equal(t, "a_b_c-d_e", SanitizeName("a/b c-d.e"))
	assert.Equal(t, "script", SanitizeName(""))
}

func TestChunkAudioPathShape(t *testing.T) {
	path := ChunkAudioPath("/audio", "My Script!", 7, "vi-VN")
	assert.Contains(t, path, filepath.Join("/audio", "My_Script_"))
	assert.Contains(t, path, "_section_7_")
	assert.Contains(t, path, "_vi-VN.mp3")
}

func TestCombinedAudioPathShape(t *testing.T) {
	path := CombinedAudioPath("/audio", "My Script", "abc123")
	assert.Equal(t, filepath.Join("/audio", "My_Script", "My_Script_combined_abc123.mp3"), path)
}
