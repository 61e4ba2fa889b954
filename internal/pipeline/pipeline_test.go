package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/TobiSchelling/nexuscds/internal/llm"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// scriptedProvider returns one response per call and records requests.
type scriptedProvider struct {
	responses []string
	failAt    int // 1-based call number that fails, 0 for never
	err       error
	requests  []llm.Request
}

func (s *scriptedProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	n := len(s.requests)
	if s.failAt == n {
		return "", s.err
	}
	if n > len(s.responses) {
		return "", errors.New("unexpected call")
	}
	return s.responses[n-1], nil
}

func (s *scriptedProvider) IsConfigured() bool { return true }
func (s *scriptedProvider) Name() string       { return "scripted" }

const (
	scribeJSON = `{"symptoms": ["crushing chest pain", "diaphoresis", "left arm radiation"], "summary": "62yo male, acute onset chest pain."}`
	nurseJSON  = `{"triage_level": "Red", "confidence": 88, "rationale": "Presentation consistent with ACS."}`
	briefText  = "Red priority. 62-year-old male with suspected acute coronary syndrome."
)

func newTestPipeline(p llm.Provider, hooks Hooks) *Pipeline {
	return New(p, zerolog.Nop(), hooks, 512)
}

func TestRunFullPipeline(t *testing.T) {
	prov := &scriptedProvider{responses: []string{scribeJSON, nurseJSON, briefText}}
	r, err := newTestPipeline(prov, Hooks{}).Run(context.Background(), "62yo male with sudden crushing chest pain")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(prov.requests) != 3 {
		t.Fatalf("expected 3 LLM calls, got %d", len(prov.requests))
	}
	if r.RunID == "" {
		t.Error("expected run id")
	}
	if len(r.Extraction.Symptoms) != 3 || r.Extraction.Summary == "" {
		t.Errorf("unexpected extraction %+v", r.Extraction)
	}
	if !r.Assessment.Valid || r.Assessment.Level != triage.Red || r.Assessment.Confidence != 88 {
		t.Errorf("unexpected assessment %+v", r.Assessment)
	}
	if r.Brief != briefText {
		t.Errorf("unexpected brief %q", r.Brief)
	}
	if len(r.Steps) != 3 || r.Steps[1].Name != StageNurse {
		t.Errorf("unexpected steps %+v", r.Steps)
	}

	for _, section := range []string{"## Symptoms", "## Triage Assessment", "## Clinical Brief", "- diaphoresis", briefText} {
		if !strings.Contains(r.Text, section) {
			t.Errorf("report missing %q:\n%s", section, r.Text)
		}
	}
	if triage.ClassifyText(r.Text) != triage.Red {
		t.Error("expected report text to classify Red")
	}
}

func TestRunPassesStageOutputsExplicitly(t *testing.T) {
	prov := &scriptedProvider{responses: []string{scribeJSON, nurseJSON, briefText}}
	narrative := "62yo male with sudden crushing chest pain"
	if _, err := newTestPipeline(prov, Hooks{}).Run(context.Background(), narrative); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !strings.Contains(prov.requests[0].Prompt, narrative) {
		t.Error("scribe prompt should contain the narrative")
	}
	if !strings.Contains(prov.requests[0].System, "Medical Scribe") {
		t.Errorf("unexpected scribe system prompt %q", prov.requests[0].System)
	}

	nurse := prov.requests[1]
	if !strings.Contains(nurse.Prompt, "- crushing chest pain") || !strings.Contains(nurse.Prompt, "62yo male, acute onset") {
		t.Errorf("nurse prompt should carry the extraction:\n%s", nurse.Prompt)
	}
	if strings.Contains(nurse.Prompt, narrative) {
		t.Error("nurse prompt should receive the extraction, not the raw narrative")
	}
	if !strings.Contains(nurse.System, "Triage Nurse") {
		t.Errorf("unexpected nurse system prompt %q", nurse.System)
	}

	pa := prov.requests[2]
	if !strings.Contains(pa.Prompt, "Triage Level: Red (confidence 88%)") {
		t.Errorf("brief prompt should carry the assessment:\n%s", pa.Prompt)
	}
	if !strings.Contains(pa.System, "Physician Assistant") {
		t.Errorf("unexpected brief system prompt %q", pa.System)
	}
	if pa.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %d", pa.MaxTokens)
	}
}

func TestRunUnstructuredOutputsDegrade(t *testing.T) {
	prov := &scriptedProvider{responses: []string{
		"Symptoms: headache, mild fever",
		"Triage Level: Yellow",
		"Brief: monitor.",
	}}
	r, err := newTestPipeline(prov, Hooks{}).Run(context.Background(), "headache since morning")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.Extraction.Symptoms) != 0 {
		t.Errorf("expected no decoded symptoms, got %v", r.Extraction.Symptoms)
	}
	if !strings.Contains(prov.requests[1].Prompt, "Symptoms: headache, mild fever") {
		t.Error("raw scribe output should be carried to the nurse")
	}
	if r.Assessment.Valid {
		t.Error("expected invalid assessment")
	}
	if !strings.Contains(r.Text, "Triage Level: Yellow") {
		t.Errorf("raw assessment should appear in report:\n%s", r.Text)
	}

	d := triage.Resolve(r.Assessment, r.Text, 92)
	if d.Level != triage.Yellow || d.Source != triage.SourceLegacy {
		t.Errorf("unexpected fallback decision %+v", d)
	}
}

func TestRunEmptyNarrative(t *testing.T) {
	prov := &scriptedProvider{}
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := newTestPipeline(prov, Hooks{}).Run(context.Background(), in)
		if !errors.Is(err, ErrEmptyNarrative) {
			t.Errorf("Run(%q): expected ErrEmptyNarrative, got %v", in, err)
		}
	}
	if len(prov.requests) != 0 {
		t.Errorf("expected no LLM calls, got %d", len(prov.requests))
	}
}

func TestRunAbortsOnStageError(t *testing.T) {
	upstream := errors.New("connection refused")
	prov := &scriptedProvider{responses: []string{scribeJSON, nurseJSON, briefText}, failAt: 2, err: upstream}

	r, err := newTestPipeline(prov, Hooks{}).Run(context.Background(), "chest pain")
	if err == nil {
		t.Fatal("expected error")
	}
	if r != nil {
		t.Error("expected no report on failure")
	}
	if !errors.Is(err, upstream) {
		t.Errorf("expected wrapped upstream error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "triage nurse: ") {
		t.Errorf("expected stage prefix, got %q", err.Error())
	}
	if len(prov.requests) != 2 {
		t.Errorf("expected no retry and no third stage, got %d calls", len(prov.requests))
	}
}

func TestRunHooks(t *testing.T) {
	var stages []string
	var completed bool
	hooks := Hooks{
		OnStage: func(stage string, _ time.Duration, _ error) { stages = append(stages, stage) },
		OnComplete: func(_ time.Duration, err error) {
			completed = err == nil
		},
	}
	prov := &scriptedProvider{responses: []string{scribeJSON, nurseJSON, briefText}}
	if _, err := newTestPipeline(prov, hooks).Run(context.Background(), "chest pain"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{StageScribe, StageNurse, StagePhysician}
	if strings.Join(stages, ",") != strings.Join(want, ",") {
		t.Errorf("expected stages %v, got %v", want, stages)
	}
	if !completed {
		t.Error("expected successful completion hook")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	prov := &scriptedProvider{responses: []string{scribeJSON}, failAt: 2, err: errors.New("timeout")}
	_, _ = newTestPipeline(prov, m.Hooks()).Run(context.Background(), "chest pain")

	if got := testutil.ToFloat64(m.StageCalls.WithLabelValues(StageScribe, "success")); got != 1 {
		t.Errorf("expected 1 successful scribe call, got %v", got)
	}
	if got := testutil.ToFloat64(m.StageCalls.WithLabelValues(StageNurse, "error")); got != 1 {
		t.Errorf("expected 1 failed nurse call, got %v", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed run, got %v", got)
	}

	m.ObserveDecision(triage.Decision{Level: triage.Green, Confidence: 92, Source: triage.SourceLegacy})
	if got := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("Green", "legacy")); got != 1 {
		t.Errorf("expected 1 legacy Green decision, got %v", got)
	}
}

func TestExtractionSymptomList(t *testing.T) {
	ex := parseExtraction("```json\n{\"symptoms\": [\" fever \", \"\", \"cough\"], \"summary\": \"viral\"}\n```")
	if ex.SymptomList() != "- fever\n- cough" {
		t.Errorf("unexpected list %q", ex.SymptomList())
	}
	raw := parseExtraction("fever and cough")
	if raw.SymptomList() != "fever and cough" {
		t.Errorf("expected raw fallback, got %q", raw.SymptomList())
	}
}
