// Package intake turns a submitted narrative into a stored triage record.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/nexuscds/internal/database"
	"github.com/TobiSchelling/nexuscds/internal/pdf"
	"github.com/TobiSchelling/nexuscds/internal/pipeline"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// ErrStore marks failures to persist a finished run.
var ErrStore = errors.New("saving triage record")

// Runner runs the agent pipeline.
type Runner interface {
	Run(ctx context.Context, narrative string) (*pipeline.Report, error)
}

// Store persists triage records.
type Store interface {
	AppendRecord(r *database.TriageRecord) (int64, error)
}

// DecisionObserver is notified of each classified run.
type DecisionObserver interface {
	ObserveDecision(d triage.Decision)
}

// Outcome is the result of a successful submission.
type Outcome struct {
	RecordID  int64
	PatientID string
	Report    *pipeline.Report
	Decision  triage.Decision
	PDF       []byte
	Filename  string
	CreatedAt time.Time
}

// Service serializes submissions so that one interaction finishes before the
// next starts.
type Service struct {
	mu                 sync.Mutex
	runner             Runner
	store              Store
	observer           DecisionObserver
	fallbackConfidence int
	logger             zerolog.Logger
	now                func() time.Time
}

// NewService creates a Service. observer may be nil.
func NewService(runner Runner, store Store, observer DecisionObserver, fallbackConfidence int, logger zerolog.Logger) *Service {
	return &Service{
		runner:             runner,
		store:              store,
		observer:           observer,
		fallbackConfidence: fallbackConfidence,
		logger:             logger.With().Str("component", "intake").Logger(),
		now:                time.Now,
	}
}

// Submit runs the pipeline on narrative, classifies and renders the report,
// and appends exactly one record. On any error nothing is stored.
func (s *Service) Submit(ctx context.Context, patientID, narrative string) (*Outcome, error) {
	if strings.TrimSpace(narrative) == "" {
		return nil, pipeline.ErrEmptyNarrative
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.runner.Run(ctx, narrative)
	if err != nil {
		return nil, err
	}

	decision := triage.Resolve(report.Assessment, report.Text, s.fallbackConfidence)
	if decision.Degraded() {
		s.logger.Warn().Str("run_id", report.RunID).Str("level", string(decision.Level)).
			Msg("structured assessment unavailable, using keyword classification")
	}
	if s.observer != nil {
		s.observer.ObserveDecision(decision)
	}

	doc, err := pdf.Render(report.Text)
	if err != nil {
		return nil, err
	}

	created := s.now()
	id, err := s.store.AppendRecord(&database.TriageRecord{
		Timestamp:   database.FormatTimestamp(created),
		PatientID:   patientID,
		Symptoms:    narrative,
		Brief:       report.Text,
		Confidence:  decision.Confidence,
		TriageLevel: decision.Level,
		PDFBlob:     doc,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	s.logger.Info().Str("run_id", report.RunID).Int64("record_id", id).
		Str("level", string(decision.Level)).Int("confidence", decision.Confidence).
		Str("source", string(decision.Source)).Msg("triage record saved")

	return &Outcome{
		RecordID:  id,
		PatientID: patientID,
		Report:    report,
		Decision:  decision,
		PDF:       doc,
		Filename:  pdf.BriefFilename(patientID, created),
		CreatedAt: created,
	}, nil
}
