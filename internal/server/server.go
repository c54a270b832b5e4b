// Package server exposes the status page, manual trigger and health check.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/Trip2025/girobot/internal/database"
	"github.com/Trip2025/girobot/internal/pipeline"
	"github.com/Trip2025/girobot/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// chatBold matches WhatsApp style *bold* spans.
var chatBold = regexp.MustCompile(`\*([^*\n]+)\*`)

const recentDeliveries = 10

// Runner runs or previews a cycle.
type Runner interface {
	Run(ctx context.Context, trigger pipeline.Trigger) *pipeline.Result
	Preview(ctx context.Context) *pipeline.Result
}

// DeliveryLog is the read side of the delivery log.
type DeliveryLog interface {
	GetRecentDeliveries(limit int) ([]database.Delivery, error)
	GetStats() (*database.Stats, error)
}

// Deps lists the server's collaborators. Log may be nil.
type Deps struct {
	Runner   Runner
	Log      DeliveryLog
	Next     func() time.Time
	RaceName string
}

// Server is the HTTP surface of the bot.
type Server struct {
	deps   Deps
	pages  map[string]*template.Template
	router chi.Router
}

// New creates a new Server.
func New(deps Deps) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
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

	// Each page gets its own clone of base so its "title" and "content"
	// blocks do not collide.
	pageNames := []string{"index.html", "trigger.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	if deps.RaceName == "" {
		deps.RaceName = "race"
	}
	s := &Server{deps: deps, pages: pages, router: chi.NewRouter()}
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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/", s.handleIndex)
	r.Get("/trigger", s.handleTrigger)
	r.Post("/trigger", s.handleTrigger)
	r.Get("/health", s.handleHealth)
	r.Get("/preview", s.handlePreview)
}

func (s *Server) nextUpdate() string {
	if s.deps.Next == nil {
		return "not scheduled"
	}
	return s.deps.Next().Format("2006-01-02 15:04:05 MST")
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"RaceName":   s.deps.RaceName,
		"NextUpdate": s.nextUpdate(),
	}
	if s.deps.Log != nil {
		deliveries, err := s.deps.Log.GetRecentDeliveries(recentDeliveries)
		if err != nil {
			slog.ErrorContext(r.Context(), "reading delivery log", "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		stats, err := s.deps.Log.GetStats()
		if err != nil {
			slog.ErrorContext(r.Context(), "reading delivery stats", "err", err)
		}
		data["Deliveries"] = deliveries
		data["Stats"] = stats
	}
	s.render(w, http.StatusOK, "index.html", data)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	result := s.deps.Runner.Run(r.Context(), pipeline.TriggerManual)

	status := http.StatusOK
	var errText string
	if result.Err != nil {
		status = http.StatusBadGateway
		errText = result.Err.Error()
	}

	s.render(w, status, "trigger.html", map[string]any{
		"Delivered": result.Delivered,
		"Stage":     result.Assembly.Stage,
		"Source":    string(result.Assembly.Source),
		"Channel":   result.Channel,
		"Error":     errText,
		"Message":   result.Message,
	})
}

type healthResponse struct {
	Status     string `json:"status"`
	NextUpdate string `json:"next_update"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", NextUpdate: s.nextUpdate()})
}

type previewResponse struct {
	Stage   int               `json:"stage"`
	Source  string            `json:"source"`
	Cause   string            `json:"cause,omitempty"`
	Record  report.FactRecord `json:"record"`
	Message string            `json:"message"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	result := s.deps.Runner.Preview(r.Context())
	resp := previewResponse{
		Stage:   result.Assembly.Stage,
		Source:  string(result.Assembly.Source),
		Record:  result.Assembly.Record,
		Message: result.Message,
	}
	if result.Assembly.Cause != nil {
		resp.Cause = result.Assembly.Cause.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("rendering template", "template", name, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "err", err)
	}
}

// renderMarkdown renders a chat message as HTML, keeping its line breaks
// and turning *bold* spans into strong text.
func renderMarkdown(text string) template.HTML {
	text = chatBold.ReplaceAllString(text, "**$1**")
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
