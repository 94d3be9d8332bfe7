package mcp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/export"
)

// ProjectService defines project operations needed by MCP.
type ProjectService interface {
	Create(ctx context.Context, cred auth.Credential, req project.CreateRequest) (*project.Project, error)
	Get(ctx context.Context, cred auth.Credential, id string) (*project.Project, error)
	Summaries(ctx context.Context, cred auth.Credential) ([]project.Summary, error)
}

// ProgressService defines phase record operations needed by MCP.
type ProgressService interface {
	Upsert(ctx context.Context, cred auth.Credential, req progress.UpsertRequest) (*progress.ModuleProgress, error)
	List(ctx context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error)
	ProjectCompletion(ctx context.Context, cred auth.Credential, projectID string) (progress.Completion, error)
}

// NoteService defines note operations needed by MCP.
type NoteService interface {
	Create(ctx context.Context, cred auth.Credential, req note.CreateRequest) (*note.Note, error)
}

// Exporter builds and renders project bundles.
type Exporter interface {
	Build(ctx context.Context, cred auth.Credential, projectID string) (*export.Bundle, error)
	Write(w io.Writer, b *export.Bundle, f export.Format) error
}

// Services contains all domain services needed by MCP.
type Services struct {
	Projects ProjectService
	Progress ProgressService
	Notes    NoteService
	Exporter Exporter
	Catalog  *catalog.Catalog
}

// Config contains server configuration.
type Config struct {
	Services       Services
	Verifier       TokenVerifier
	AuthEnabled    bool
	DefaultSubject string
	Version        string
	Logger         *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "phasetrack",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       logger,
	})

	registerFrameworkResources(server, cfg.Services.Catalog)

	if cfg.AuthEnabled {
		server.AddReceivingMiddleware(authMiddleware(cfg.Verifier))
	} else {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultSubject))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(logger, "outbound"))

	registerTools(server, cfg.Services, logger)

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return server },
		&sdkmcp.StreamableHTTPOptions{
			SessionTimeout: 30 * time.Minute,
		},
	)
}
