// Package pipeline runs the three-stage clinical agent pipeline: a medical
// scribe extracts symptoms, a triage nurse assigns a level, and a physician
// assistant writes the brief. Each stage receives the previous stages'
// outputs explicitly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/TobiSchelling/nexuscds/internal/llm"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// ErrEmptyNarrative is returned by Run for blank input.
var ErrEmptyNarrative = errors.New("clinical narrative is empty")

// Stage names, used in errors, logs and metric labels.
const (
	StageScribe    = "scribe"
	StageNurse     = "triage nurse"
	StagePhysician = "physician assistant"
)

// StepResult holds the result of a single pipeline stage.
type StepResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Extraction is the scribe's output.
type Extraction struct {
	Symptoms []string
	Summary  string

	// Raw is the unmodified response. When it could not be decoded,
	// Symptoms is empty and Raw stands in for the extraction.
	Raw string
}

// SymptomList renders the symptoms as a markdown list, or the raw response
// when none were decoded.
func (e Extraction) SymptomList() string {
	if len(e.Symptoms) == 0 {
		return strings.TrimSpace(e.Raw)
	}
	var b strings.Builder
	for i, s := range e.Symptoms {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(s)
	}
	return b.String()
}

// Report is the combined output of one pipeline run.
type Report struct {
	RunID      string
	Extraction Extraction
	Assessment triage.Assessment
	Brief      string
	Steps      []StepResult

	// Text concatenates the three stage sections. It is what gets
	// classified, rendered, exported and stored.
	Text string
}

// Hooks observe pipeline progress. Nil fields are skipped.
type Hooks struct {
	OnStage    func(stage string, d time.Duration, err error)
	OnComplete func(d time.Duration, err error)
}

// Pipeline orchestrates the agent stages against one provider.
type Pipeline struct {
	provider  llm.Provider
	logger    zerolog.Logger
	hooks     Hooks
	maxTokens int
}

// New creates a pipeline.
func New(provider llm.Provider, logger zerolog.Logger, hooks Hooks, maxTokens int) *Pipeline {
	return &Pipeline{
		provider:  provider,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		hooks:     hooks,
		maxTokens: maxTokens,
	}
}

// Run executes the stages in order. Any provider error aborts the run and is
// returned wrapped with the stage name. There is no retry.
func (p *Pipeline) Run(ctx context.Context, narrative string) (*Report, error) {
	if strings.TrimSpace(narrative) == "" {
		return nil, ErrEmptyNarrative
	}

	start := time.Now()
	r := &Report{RunID: ulid.Make().String()}
	log := p.logger.With().Str("run_id", r.RunID).Logger()
	log.Info().Str("provider", p.provider.Name()).Int("narrative_bytes", len(narrative)).Msg("pipeline started")

	err := p.run(ctx, log, r, narrative)
	elapsed := time.Since(start)
	if p.hooks.OnComplete != nil {
		p.hooks.OnComplete(elapsed, err)
	}
	if err != nil {
		log.Error().Err(err).Dur("duration", elapsed).Msg("pipeline failed")
		return nil, err
	}

	log.Info().Dur("duration", elapsed).Bool("structured", r.Assessment.Valid).Msg("pipeline complete")
	return r, nil
}

func (p *Pipeline) run(ctx context.Context, log zerolog.Logger, r *Report, narrative string) error {
	// Stage 1: extract
	raw, err := p.stage(ctx, log, r, StageScribe, Scribe, buildScribePrompt(narrative))
	if err != nil {
		return err
	}
	r.Extraction = parseExtraction(raw)
	if len(r.Extraction.Symptoms) == 0 {
		log.Warn().Msg("scribe output not structured, carrying raw text")
	}

	// Stage 2: assess
	raw, err = p.stage(ctx, log, r, StageNurse, Nurse, buildNursePrompt(r.Extraction))
	if err != nil {
		return err
	}
	r.Assessment = triage.ParseAssessment(raw)
	if !r.Assessment.Valid {
		log.Warn().Str("problem", r.Assessment.Problem).Msg("triage assessment failed validation")
	}

	// Stage 3: brief
	raw, err = p.stage(ctx, log, r, StagePhysician, PhysicianAssistant, buildBriefPrompt(r.Extraction, r.Assessment))
	if err != nil {
		return err
	}
	r.Brief = strings.TrimSpace(raw)

	r.Text = composeReport(r)
	return nil
}

func (p *Pipeline) stage(ctx context.Context, log zerolog.Logger, r *Report, name string, agent Agent, prompt string) (string, error) {
	start := time.Now()
	out, err := p.provider.Generate(ctx, llm.Request{
		System:    agent.System(),
		Prompt:    prompt,
		MaxTokens: p.maxTokens,
	})
	d := time.Since(start)

	r.Steps = append(r.Steps, StepResult{Name: name, Duration: d, Err: err})
	if p.hooks.OnStage != nil {
		p.hooks.OnStage(name, d, err)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	log.Debug().Str("stage", name).Dur("duration", d).Int("response_bytes", len(out)).Msg("stage complete")
	return out, nil
}

type extractionJSON struct {
	Symptoms []string `json:"symptoms"`
	Summary  string   `json:"summary"`
}

func parseExtraction(raw string) Extraction {
	ex := Extraction{Raw: raw}
	var parsed extractionJSON
	if err := llm.DecodeJSONResponse(raw, &parsed); err != nil {
		return ex
	}
	for _, s := range parsed.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			ex.Symptoms = append(ex.Symptoms, s)
		}
	}
	ex.Summary = strings.TrimSpace(parsed.Summary)
	return ex
}

func composeReport(r *Report) string {
	var b strings.Builder

	b.WriteString("## Symptoms\n\n")
	b.WriteString(r.Extraction.SymptomList())
	if len(r.Extraction.Symptoms) > 0 && r.Extraction.Summary != "" {
		b.WriteString("\n\n")
		b.WriteString(r.Extraction.Summary)
	}

	b.WriteString("\n\n## Triage Assessment\n\n")
	b.WriteString(describeAssessment(r.Assessment))

	b.WriteString("\n\n## Clinical Brief\n\n")
	b.WriteString(r.Brief)
	b.WriteString("\n")

	return b.String()
}
