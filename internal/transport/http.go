package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/export"
)

// ProjectService is the project surface used by the API.
type ProjectService interface {
	Create(ctx context.Context, cred auth.Credential, req project.CreateRequest) (*project.Project, error)
	Get(ctx context.Context, cred auth.Credential, id string) (*project.Project, error)
	Summaries(ctx context.Context, cred auth.Credential) ([]project.Summary, error)
	Update(ctx context.Context, cred auth.Credential, id string, req project.UpdateRequest) (*project.Project, error)
	Delete(ctx context.Context, cred auth.Credential, id string) error
}

// ProgressService is the phase record surface used by the API.
type ProgressService interface {
	Upsert(ctx context.Context, cred auth.Credential, req progress.UpsertRequest) (*progress.ModuleProgress, error)
	List(ctx context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error)
	ProjectCompletion(ctx context.Context, cred auth.Credential, projectID string) (progress.Completion, error)
}

// ArtifactService is the master artifact surface used by the API.
type ArtifactService interface {
	Create(ctx context.Context, cred auth.Credential, req artifact.CreateRequest) (*artifact.MasterArtifact, error)
	List(ctx context.Context, cred auth.Credential, projectID string) ([]artifact.MasterArtifact, error)
}

// NoteService is the note surface used by the API.
type NoteService interface {
	Create(ctx context.Context, cred auth.Credential, req note.CreateRequest) (*note.Note, error)
	List(ctx context.Context, cred auth.Credential, projectID string) ([]note.Note, error)
	Update(ctx context.Context, cred auth.Credential, id, content string) (*note.Note, error)
	Delete(ctx context.Context, cred auth.Credential, id string) error
}

// Exporter builds and renders project bundles.
type Exporter interface {
	Build(ctx context.Context, cred auth.Credential, projectID string) (*export.Bundle, error)
	Write(w io.Writer, b *export.Bundle, f export.Format) error
}

// Services groups the domain services behind the API.
type Services struct {
	Projects  ProjectService
	Progress  ProgressService
	Artifacts ArtifactService
	Notes     NoteService
	Exporter  Exporter
	Catalog   *catalog.Catalog
}

// Config wires the HTTP server.
type Config struct {
	Services Services
	// Auth resolves credentials for /api routes. Nil leaves requests
	// anonymous.
	Auth func(http.Handler) http.Handler
	// RateLimit guards /api routes when set.
	RateLimit func(http.Handler) http.Handler
	// Ready reports whether dependencies are reachable.
	Ready func(ctx context.Context) error
	// MCP is mounted at /mcp when set.
	MCP    http.Handler
	Logger *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	services Services
	ready    func(ctx context.Context) error
	logger   *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(cfg Config) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	srv := &Server{services: cfg.Services, ready: cfg.Ready, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/health", srv.handleHealth)
	r.Get("/readyz", srv.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}
		r.Use(LimitBody)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", srv.listProjects)
			r.Post("/", srv.createProject)
			r.Get("/{id}", srv.getProject)
			r.Patch("/{id}", srv.updateProject)
			r.Delete("/{id}", srv.deleteProject)
			r.Get("/{id}/progress", srv.projectProgress)
			r.Get("/{id}/export", srv.exportProject)
		})

		r.Get("/module-progress", srv.listModuleProgress)
		r.Post("/module-progress", srv.saveModuleProgress)

		r.Get("/master-artifacts", srv.listMasterArtifacts)
		r.Post("/master-artifacts", srv.createMasterArtifact)

		r.Get("/notes", srv.listNotes)
		r.Post("/notes", srv.createNote)
		r.Patch("/notes/{id}", srv.updateNote)
		r.Delete("/notes/{id}", srv.deleteNote)

		r.Get("/framework", srv.frameworkInfo)
		r.Get("/framework/modules", srv.frameworkModules)
		r.Get("/framework/modules/{n}/phases", srv.frameworkPhases)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
