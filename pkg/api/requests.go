package api

import (
	"strconv"
	"strings"

	"github.com/scriptorium/scriptorium/pkg/models"
)

// Duration bounds for submitted target durations, in minutes.
const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 180
)

// suggestionSeparator joins a title with its translation in the selection
// form: "original||translation".
const suggestionSeparator = "||"

// parsePriority maps the form values to the numeric priority scale.
// Unknown values fall back to medium.
func parsePriority(value string) int {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}

// parseDuration clamps a submitted duration into the allowed range.
// Unparseable values get the provided default.
func parseDuration(value string, fallback int) int {
	d, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		d = fallback
	}
	if d < MinDurationMinutes {
		d = MinDurationMinutes
	}
	if d > MaxDurationMinutes {
		d = MaxDurationMinutes
	}
	return d
}

// splitSelectedSuggestion separates "original||translation" into its parts.
// A value without the separator is all title.
func splitSelectedSuggestion(value string) (title, translation string) {
	parts := strings.SplitN(value, suggestionSeparator, 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		translation = strings.TrimSpace(parts[1])
	}
	return title, translation
}
