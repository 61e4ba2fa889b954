package triage

import (
	"fmt"
	"math"
	"strings"

	"github.com/TobiSchelling/nexuscds/internal/llm"
)

// Assessment is the triage nurse's structured result.
type Assessment struct {
	Level      Level
	Confidence int
	Rationale  string

	// Valid is false when the response did not satisfy the schema; Problem
	// then says why.
	Valid   bool
	Problem string

	// Raw is the unmodified model response.
	Raw string
}

type assessmentJSON struct {
	TriageLevel string   `json:"triage_level"`
	Confidence  *float64 `json:"confidence"`
	Rationale   string   `json:"rationale"`
}

// ParseAssessment validates a triage nurse response against the schema
//
//	{"triage_level": "Red"|"Yellow"|"Green", "confidence": 0-100, "rationale": "..."}
//
// confidence must be a whole number. Responses that fail validation come back
// with Valid=false and are never an error: the caller falls back to the
// legacy classifier.
func ParseAssessment(text string) Assessment {
	a := Assessment{Raw: text}

	var parsed assessmentJSON
	if err := llm.DecodeJSONResponse(text, &parsed); err != nil {
		a.Problem = err.Error()
		return a
	}

	level, err := ParseLevel(parsed.TriageLevel)
	if err != nil {
		a.Problem = err.Error()
		return a
	}
	if parsed.Confidence == nil {
		a.Problem = "confidence missing"
		return a
	}
	c := *parsed.Confidence
	if c != math.Trunc(c) || c < 0 || c > 100 {
		a.Problem = fmt.Sprintf("confidence %v out of range 0..100", c)
		return a
	}

	a.Level = level
	a.Confidence = int(c)
	a.Rationale = strings.TrimSpace(parsed.Rationale)
	a.Valid = true
	return a
}
