package mcp

import (
	"context"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/phasetrack/internal/auth"
)

// TokenVerifier turns a bearer token into a credential.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Credential, error)
}

// authMiddleware implements bearer token authentication as MCP middleware.
func authMiddleware(verifier TokenVerifier) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			// Protocol methods carry no caller.
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", auth.ErrUnauthenticated)
			}

			token := auth.BearerToken(extra.Header.Get("Authorization"))
			if token == "" {
				return nil, fmt.Errorf("%w: missing bearer token", auth.ErrUnauthenticated)
			}

			cred, err := verifier.Verify(ctx, token)
			if err != nil {
				return nil, err
			}

			return next(auth.WithCredential(ctx, cred), method, req)
		}
	}
}

// noAuthMiddleware injects a default subject when auth is disabled.
func noAuthMiddleware(defaultSubject string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx = auth.WithCredential(ctx, auth.Credential{Subject: defaultSubject})
			return next(ctx, method, req)
		}
	}
}

func credential(ctx context.Context) auth.Credential {
	cred, _ := auth.FromContext(ctx)
	return cred
}
