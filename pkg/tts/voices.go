package tts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DefaultVoiceKey is the fallback entry in the voice configuration table.
const DefaultVoiceKey = "__DEFAULT__"

// ultimateDefault is used when the table has no usable entry at all.
var ultimateDefault = Voice{
	Provider:     ProviderOpenAI,
	VoiceName:    "onyx",
	LanguageCode: "en-US",
	SpeakingRate: 1.0,
}

// VoiceTable maps language names (case-insensitive) to voice settings.
type VoiceTable struct {
	voices map[string]Voice
}

// LoadVoiceTable reads the JSON voice configuration file. A missing file is
// not an error; lookups then resolve to the built-in default.
func LoadVoiceTable(path string) (*VoiceTable, error) {
	table := &VoiceTable{voices: map[string]Voice{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading voice config: %w", err)
	}

	var raw map[string]Voice
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing voice config: %w", err)
	}
	for lang, v := range raw {
		table.voices[strings.ToLower(strings.TrimSpace(lang))] = v
	}
	return table, nil
}

// Lookup resolves the voice for a language: exact match first, then partial
// match in either direction, then the __DEFAULT__ entry, then the built-in
// default. Missing fields are filled from the fallback chain.
func (t *VoiceTable) Lookup(language string) Voice {
	key := strings.ToLower(strings.TrimSpace(language))

	if v, ok := t.voices[key]; ok {
		return t.withDefaults(v)
	}
	if key != "" {
		for lang, v := range t.voices {
			if lang == strings.ToLower(DefaultVoiceKey) {
				continue
			}
			if strings.Contains(lang, key) || strings.Contains(key, lang) {
				return t.withDefaults(v)
			}
		}
	}
	if v, ok := t.voices[strings.ToLower(DefaultVoiceKey)]; ok {
		return t.withDefaults(v)
	}
	return ultimateDefault
}

func (t *VoiceTable) withDefaults(v Voice) Voice {
	fallback := ultimateDefault
	if d, ok := t.voices[strings.ToLower(DefaultVoiceKey)]; ok {
		if d.Provider != "" {
			fallback.Provider = d.Provider
		}
		if d.VoiceName != "" {
			fallback.VoiceName = d.VoiceName
		}
		if d.LanguageCode != "" {
			fallback.LanguageCode = d.LanguageCode
		}
		if d.SpeakingRate > 0 {
			fallback.SpeakingRate = d.SpeakingRate
		}
	}
	if v.Provider == "" {
		v.Provider = fallback.Provider
	}
	if v.VoiceName == "" {
		v.VoiceName = fallback.VoiceName
	}
	if v.LanguageCode == "" {
		v.LanguageCode = fallback.LanguageCode
	}
	if v.SpeakingRate <= 0 {
		v.SpeakingRate = fallback.SpeakingRate
	}
	return v
}
