package transport

import (
	"context"
	"net/http"

	"github.com/rpggio/phasetrack/internal/auth"
)

// TokenVerifier turns a bearer token into a credential.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.Credential, error)
}

// AuthMiddleware verifies bearer tokens. A request without a token proceeds
// with an anonymous credential; operations that need an actor reject it.
// An invalid token is rejected with 401.
func AuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithCredential(r.Context(), auth.Credential{})))
				return
			}

			cred, err := verifier.Verify(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithCredential(r.Context(), cred)))
		})
	}
}

// NoAuthMiddleware injects a fixed subject when auth is disabled.
func NoAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred := auth.Credential{
				Subject: defaultSubject,
				Token:   auth.BearerToken(r.Header.Get("Authorization")),
			}
			next.ServeHTTP(w, r.WithContext(auth.WithCredential(r.Context(), cred)))
		})
	}
}

func credential(r *http.Request) auth.Credential {
	cred, _ := auth.FromContext(r.Context())
	return cred
}
