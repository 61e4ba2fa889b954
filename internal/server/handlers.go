package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TobiSchelling/nexuscds/internal/analytics"
	"github.com/TobiSchelling/nexuscds/internal/database"
	"github.com/TobiSchelling/nexuscds/internal/intake"
	"github.com/TobiSchelling/nexuscds/internal/pdf"
	"github.com/TobiSchelling/nexuscds/internal/pipeline"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

const maxNarrativeBytes = 64 << 10

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "intake.html", map[string]any{
		"Nav":       "intake",
		"PatientID": "",
		"Narrative": "",
	})
}

func (s *Server) handleTriage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNarrativeBytes)
	if err := r.ParseForm(); err != nil {
		s.renderError(w, http.StatusBadRequest, "Bad request", "The form could not be read.")
		return
	}

	patientID := strings.TrimSpace(r.PostFormValue("patient_id"))
	narrative := r.PostFormValue("narrative")
	data := map[string]any{
		"Nav":       "intake",
		"PatientID": patientID,
		"Narrative": narrative,
	}

	out, err := s.intake.Submit(r.Context(), patientID, narrative)
	if err != nil {
		log := s.logger.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		switch {
		case errors.Is(err, pipeline.ErrEmptyNarrative):
			data["Error"] = "Please enter a clinical narrative."
			s.render(w, http.StatusBadRequest, "intake.html", data)
		case errors.Is(err, intake.ErrStore):
			log.Error().Err(err).Msg("storing triage record")
			s.renderError(w, http.StatusInternalServerError, "Storage error",
				"The report was generated but could not be saved. No record was written.")
		default:
			log.Error().Err(err).Msg("triage pipeline failed")
			s.renderError(w, http.StatusBadGateway, "Analysis failed",
				fmt.Sprintf("The clinical agents could not complete the analysis: %v", err))
		}
		return
	}

	data["Outcome"] = out
	s.render(w, http.StatusOK, "intake.html", data)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.AllTrendRows()
	if err != nil {
		s.logger.Error().Err(err).Msg("loading analytics")
		s.renderError(w, http.StatusInternalServerError, "Internal error", "Analytics could not be loaded.")
		return
	}

	s.render(w, http.StatusOK, "analytics.html", map[string]any{
		"Nav":          "analytics",
		"View":         analytics.Build(rows),
		"EmptyMessage": analytics.EmptyMessage,
	})
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, analytics.TrendChart)
}

func (s *Server) handleDistributionChart(w http.ResponseWriter, r *http.Request) {
	s.serveChart(w, analytics.DistributionChart)
}

func (s *Server) serveChart(w http.ResponseWriter, chart func(*analytics.View, io.Writer) error) {
	rows, err := s.db.AllTrendRows()
	if err != nil {
		s.logger.Error().Err(err).Msg("loading chart data")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	v := analytics.Build(rows)
	if v.Empty {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(analytics.EmptyMessage))
		return
	}

	var buf bytes.Buffer
	if err := chart(v, &buf); err != nil {
		s.logger.Error().Err(err).Msg("rendering chart")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.ListFilter{PatientID: strings.TrimSpace(q.Get("patient"))}
	if l, err := triage.ParseLevel(q.Get("level")); err == nil {
		filter.Level = l
	}

	records, err := s.db.ListRecords(filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("listing records")
		s.renderError(w, http.StatusInternalServerError, "Internal error", "History could not be loaded.")
		return
	}

	s.render(w, http.StatusOK, "history.html", map[string]any{
		"Nav":     "history",
		"Records": records,
		"Level":   string(filter.Level),
		"Patient": filter.PatientID,
		"Levels":  triage.Levels,
	})
}

func (s *Server) handleHistoryFetch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/history", http.StatusFound)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/records/%d/pdf?recall=1", id), http.StatusFound)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		s.renderError(w, http.StatusNotFound, "Not found", "record not found")
		return
	}

	rec, err := s.db.GetRecord(id)
	if err != nil {
		s.logger.Error().Err(err).Int64("record_id", id).Msg("loading record")
		s.renderError(w, http.StatusInternalServerError, "Internal error", "The record could not be loaded.")
		return
	}
	if rec == nil {
		s.renderError(w, http.StatusNotFound, "Not found", "record not found")
		return
	}

	s.render(w, http.StatusOK, "record.html", map[string]any{
		"Nav":    "history",
		"Record": rec,
	})
}

func (s *Server) handleRecordPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r)
	if !ok {
		s.renderError(w, http.StatusNotFound, "Not found", "record not found")
		return
	}

	doc, err := s.db.FetchPDF(id)
	if err != nil {
		s.logger.Error().Err(err).Int64("record_id", id).Msg("fetching pdf")
		s.renderError(w, http.StatusInternalServerError, "Internal error", "The report could not be loaded.")
		return
	}
	if doc == nil {
		s.renderError(w, http.StatusNotFound, "Not found", "record not found")
		return
	}

	name := pdf.RecallFilename(doc.PatientID)
	if r.URL.Query().Get("recall") == "" {
		created, _ := time.Parse(database.TimestampLayout, doc.Timestamp)
		name = pdf.BriefFilename(doc.PatientID, created)
	}

	w.Header().Set("Content-Type", pdf.MIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Blob)))
	w.Write(doc.Blob)
}

func recordID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
