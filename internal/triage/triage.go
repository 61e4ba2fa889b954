// Package triage maps pipeline output to an urgency level.
//
// The structured assessment emitted by the triage nurse stage is preferred.
// When it is missing or fails validation, the level falls back to a substring
// search over the whole report, which defaults to Green whenever neither
// "Red" nor "Yellow" appears. That fallback cannot tell a stable patient from
// an unclassifiable report and is surfaced as degraded mode.
package triage

import (
	"fmt"
	"strings"
)

// Level is the categorical urgency rating. Red is most urgent.
type Level string

const (
	Red    Level = "Red"
	Yellow Level = "Yellow"
	Green  Level = "Green"
)

// Levels lists every level, most urgent first.
var Levels = []Level{Red, Yellow, Green}

// Source records which path produced a Decision.
type Source string

const (
	// SourceStructured means the validated structured assessment was used.
	SourceStructured Source = "structured"

	// SourceLegacy means the substring fallback was used (degraded mode).
	SourceLegacy Source = "legacy"
)

// ParseLevel matches s against the three levels, ignoring case and
// surrounding whitespace.
func ParseLevel(s string) (Level, error) {
	s = strings.TrimSpace(s)
	for _, l := range Levels {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown triage level %q", s)
}

// Valid reports whether l is one of the three levels.
func (l Level) Valid() bool {
	return l == Red || l == Yellow || l == Green
}

// ClassifyText is the legacy heuristic: the first of "Red", "Yellow" found in
// report (case-sensitive) wins, otherwise Green.
func ClassifyText(report string) Level {
	switch {
	case strings.Contains(report, string(Red)):
		return Red
	case strings.Contains(report, string(Yellow)):
		return Yellow
	default:
		return Green
	}
}

// Decision is the level and confidence attached to a triage record.
type Decision struct {
	Level      Level
	Confidence int
	Source     Source
}

// Degraded reports whether the legacy fallback produced the decision.
func (d Decision) Degraded() bool {
	return d.Source == SourceLegacy
}

// Resolve picks the structured assessment when it is valid and otherwise
// classifies report with ClassifyText and reports fallbackConfidence.
func Resolve(a Assessment, report string, fallbackConfidence int) Decision {
	if a.Valid {
		return Decision{Level: a.Level, Confidence: a.Confidence, Source: SourceStructured}
	}
	return Decision{Level: ClassifyText(report), Confidence: fallbackConfidence, Source: SourceLegacy}
}
