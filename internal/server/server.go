// Package server serves the triage dashboard: intake form, analytics and
// audit history.
package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/TobiSchelling/nexuscds/internal/database"
	"github.com/TobiSchelling/nexuscds/internal/intake"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Submitter runs one triage interaction.
type Submitter interface {
	Submit(ctx context.Context, patientID, narrative string) (*intake.Outcome, error)
}

// Server is the HTTP server for the dashboard.
type Server struct {
	db      *database.DB
	intake  Submitter
	metrics http.Handler
	logger  zerolog.Logger
	pages   map[string]*template.Template
	router  chi.Router
}

// New creates a new Server. metrics may be nil, in which case /metrics is
// not mounted.
func New(db *database.DB, svc Submitter, metrics http.Handler, logger zerolog.Logger) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":        renderMarkdown,
		"formatTimestamp": database.FormatTimestampDisplay,
		"levelClass":      levelClass,
		"alert":           alertMessage,
		"percent": func(f float64) string {
			return fmt.Sprintf("%.0f%%", f)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone so {{define "content"}} does not collide.
	pageNames := []string{"intake.html", "analytics.html", "history.html", "record.html", "error.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:      db,
		intake:  svc,
		metrics: metrics,
		logger:  logger.With().Str("component", "http").Logger(),
		pages:   pages,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(recoverer(s.logger))

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/", s.handleIndex)
	r.Post("/triage", s.handleTriage)

	r.Get("/analytics", s.handleAnalytics)
	r.Get("/analytics/trend", s.handleTrendChart)
	r.Get("/analytics/distribution", s.handleDistributionChart)

	r.Get("/history", s.handleHistory)
	r.Get("/history/fetch", s.handleHistoryFetch)

	r.Route("/records/{id}", func(r chi.Router) {
		r.Get("/", s.handleRecord)
		r.Get("/pdf", s.handleRecordPDF)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, http.StatusNotFound, "Not found", "The page you requested does not exist.")
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data map[string]any) {
	tmpl, ok := s.pages[name]
	if !ok {
		s.logger.Error().Str("template", name).Msg("template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Render to a buffer so a template error does not leave a half-written page.
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		s.logger.Error().Err(err).Str("template", name).Msg("rendering template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, status int, title, message string) {
	s.render(w, status, "error.html", map[string]any{
		"Nav":     "",
		"Status":  status,
		"Title":   title,
		"Message": message,
	})
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func levelClass(l triage.Level) string {
	return strings.ToLower(string(l))
}

func alertMessage(l triage.Level) string {
	switch l {
	case triage.Red:
		return "🚨 ALERT: Red Priority Detected"
	case triage.Yellow:
		return "⚠️ ATTENTION: Yellow Priority"
	default:
		return "✅ STABLE: " + string(l) + " Priority"
	}
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", "http://"+addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
