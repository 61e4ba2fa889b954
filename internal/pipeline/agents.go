package pipeline

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// Agent is a persona used as the system prompt of one stage.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
}

// System renders the agent as a system prompt.
func (a Agent) System() string {
	return fmt.Sprintf("You are a %s.\nGoal: %s\nBackground: %s", a.Role, a.Goal, a.Backstory)
}

var (
	Scribe = Agent{
		Role:      "Medical Scribe",
		Goal:      "Extract and structure clinical symptoms from raw notes.",
		Backstory: "Expert in clinical entity extraction and medical terminology.",
	}
	Nurse = Agent{
		Role:      "Triage Nurse",
		Goal:      "Determine the urgency of the presentation.",
		Backstory: "ER specialist trained in ESI (Emergency Severity Index) triage.",
	}
	PhysicianAssistant = Agent{
		Role:      "Physician Assistant",
		Goal:      "Write a concise clinical brief a physician can act on.",
		Backstory: "Experienced emergency department PA who hands patients over to attending physicians.",
	}
)

const scribePrompt = `Analyze the following clinical narrative and extract the presenting symptoms.

NARRATIVE:
%s

Respond with ONLY a JSON object (no markdown, no explanation):
{"symptoms": ["symptom", "..."], "summary": "one or two sentence structured summary"}`

const nursePrompt = `Based on the extracted clinical findings below, assign a triage level.

Levels:
- Red: immediate, life-threatening presentation
- Yellow: urgent but stable
- Green: non-urgent

SYMPTOMS:
%s

SUMMARY:
%s

Respond with ONLY a JSON object (no markdown, no explanation):
{"triage_level": "Red" | "Yellow" | "Green", "confidence": <integer 0-100 reflecting data clarity>, "rationale": "one sentence"}`

const briefPrompt = `Write a brief of about 100 words for the attending physician.

SYMPTOMS:
%s

SUMMARY:
%s

TRIAGE ASSESSMENT:
%s

Write plain prose. Start with the triage level.`

func buildScribePrompt(narrative string) string {
	return fmt.Sprintf(scribePrompt, narrative)
}

func buildNursePrompt(ex Extraction) string {
	return fmt.Sprintf(nursePrompt, ex.SymptomList(), ex.Summary)
}

func buildBriefPrompt(ex Extraction, a triage.Assessment) string {
	return fmt.Sprintf(briefPrompt, ex.SymptomList(), ex.Summary, describeAssessment(a))
}

func describeAssessment(a triage.Assessment) string {
	if !a.Valid {
		return strings.TrimSpace(a.Raw)
	}
	s := fmt.Sprintf("Triage Level: %s (confidence %d%%)", a.Level, a.Confidence)
	if a.Rationale != "" {
		s += "\nRationale: " + a.Rationale
	}
	return s
}
