package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateForKnownLanguages(t *testing.T) {
	cfg := DefaultSizingConfig()

	tests := []struct {
		language    string
		minutes     int
		targetChars int
		numItems    int
	}{
		{"Vietnamese", 60, 90000, 30},
		{"English", 60, 48000, 30},
		{"Chinese", 60, 24000, 30},
		{"English", 30, 24000, 15},
		{"Martian", 60, 45000, 30},
	}

	for _, tc := range tests {
		est := cfg.EstimateFor(tc.language, tc.minutes)
		assert.Equal(t, tc.targetChars, est.TargetChars, "%s %dmin", tc.language, tc.minutes)
		assert.Equal(t, tc.numItems, est.NumItems, "%s %dmin", tc.language, tc.minutes)
	}
}

func TestEstimateForAppliesFloors(t *testing.T) {
	cfg := DefaultSizingConfig()

	// 3 minutes of English is 2400 raw chars, floored to the minimum.
	est := cfg.EstimateFor("English", 3)
	assert.Equal(t, 4000, est.TargetChars)
	assert.Equal(t, 4, est.NumItems)

	// The floor is a knob, not a constant.
	cfg.MinTargetChars = 0
	est = cfg.EstimateFor("English", 3)
	assert.Equal(t, 2400, est.TargetChars)
}

func TestEstimateQuoteStorySplit(t *testing.T) {
	cfg := DefaultSizingConfig()

	// Odd item counts give the extra slot to quotes.
	est := cfg.EstimateFor("English", 30)
	assert.Equal(t, 15, est.NumItems)
	assert.Equal(t, 8, est.NumQuotes)
	assert.Equal(t, 7, est.NumStories)
}

func TestLookupCPMPartialMatch(t *testing.T) {
	cfg := DefaultSizingConfig()

	// Case-insensitive exact match.
	assert.Equal(t, 1500, cfg.lookupCPM("VIETNAMESE"))
	// Substring in either direction.
	assert.Equal(t, 800, cfg.lookupCPM("english (us)"))
	assert.Equal(t, 1500, cfg.lookupCPM("viet"))
	// Unknown falls back to the default.
	assert.Equal(t, 750, cfg.lookupCPM("klingon"))
	assert.Equal(t, 750, cfg.lookupCPM(""))
}
