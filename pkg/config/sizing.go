package config

import (
	"math"
	"strings"
)

// SizingConfig holds the empirical narration-speed table used to size a
// script from its target duration. Characters-per-minute values differ per
// language; the constants here are starting points, not laws.
type SizingConfig struct {
	// CharsPerMinute maps a lowercase language-name fragment to its
	// narration speed. Lookup tries an exact match first, then a substring
	// match in either direction.
	CharsPerMinute map[string]int

	// DefaultCharsPerMinute is used when no language matches.
	DefaultCharsPerMinute int

	// MinTargetChars floors the computed script length.
	MinTargetChars int

	// ItemsPerHour drives how many outline items a script of a given
	// duration should have.
	ItemsPerHour int

	// MinItems floors the item count for very short scripts.
	MinItems int
}

// DefaultSizingConfig returns the built-in sizing table.
func DefaultSizingConfig() *SizingConfig {
	return &SizingConfig{
		CharsPerMinute: map[string]int{
			"vietnamese": 1500,
			"english":    800,
			"chinese":    400,
			"japanese":   450,
			"korean":     500,
		},
		DefaultCharsPerMinute: 750,
		MinTargetChars:        4000,
		ItemsPerHour:          30,
		MinItems:              4,
	}
}

// Estimate is the sizing result for one generation.
type Estimate struct {
	TargetChars int
	NumItems    int
	NumQuotes   int
	NumStories  int
}

// EstimateFor computes the script size for a language and duration in
// minutes. Quotes take the larger half of the item budget.
func (c *SizingConfig) EstimateFor(language string, durationMinutes int) Estimate {
	cpm := c.lookupCPM(language)

	targetChars := durationMinutes * cpm
	if targetChars < c.MinTargetChars {
		targetChars = c.MinTargetChars
	}

	numItems := int(math.Round(float64(c.ItemsPerHour) * float64(durationMinutes) / 60.0))
	if numItems < c.MinItems {
		numItems = c.MinItems
	}
	numQuotes := (numItems + 1) / 2

	return Estimate{
		TargetChars: targetChars,
		NumItems:    numItems,
		NumQuotes:   numQuotes,
		NumStories:  numItems - numQuotes,
	}
}

func (c *SizingConfig) lookupCPM(language string) int {
	key := strings.ToLower(strings.TrimSpace(language))
	if cpm, ok := c.CharsPerMinute[key]; ok {
		return cpm
	}
	for name, cpm := range c.CharsPerMinute {
		if key != "" && (strings.Contains(name, key) || strings.Contains(key, name)) {
			return cpm
		}
	}
	return c.DefaultCharsPerMinute
}
