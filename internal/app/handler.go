package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/config"
	"github.com/rpggio/phasetrack/internal/mcp"
	"github.com/rpggio/phasetrack/internal/transport"
)

// HandlerOptions configures the HTTP surface built by Handler.
type HandlerOptions struct {
	Auth       config.AuthConfig
	RateLimit  func(http.Handler) http.Handler
	Ready      func(ctx context.Context) error
	MCPEnabled bool
	Version    string
	Logger     *slog.Logger
}

// Handler builds the router serving /api, the ops endpoints and, when
// enabled, MCP at /mcp. Both surfaces share one token verifier.
func (s *Services) Handler(opts HandlerOptions) http.Handler {
	var verifier *auth.Verifier
	authMW := transport.NoAuthMiddleware(opts.Auth.DefaultSubject)
	if opts.Auth.Enabled {
		verifier = auth.NewVerifier(opts.Auth.JWTSecret)
		authMW = transport.AuthMiddleware(verifier)
	}

	var mcpHandler http.Handler
	if opts.MCPEnabled {
		mcpCfg := mcp.Config{
			Services:       s.MCP(),
			AuthEnabled:    opts.Auth.Enabled,
			DefaultSubject: opts.Auth.DefaultSubject,
			Version:        opts.Version,
			Logger:         opts.Logger,
		}
		if verifier != nil {
			mcpCfg.Verifier = verifier
		}
		mcpHandler = mcp.NewHTTPHandler(mcp.NewServer(mcpCfg))
	}

	return transport.NewServer(transport.Config{
		Services:  s.Transport(),
		Auth:      authMW,
		RateLimit: opts.RateLimit,
		Ready:     opts.Ready,
		MCP:       mcpHandler,
		Logger:    opts.Logger,
	})
}

// MCP adapts the services to the MCP tool surface.
func (s *Services) MCP() mcp.Services {
	return mcp.Services{
		Projects: s.Projects,
		Progress: s.Progress,
		Notes:    s.Notes,
		Exporter: s.Exporter,
		Catalog:  s.Catalog,
	}
}
