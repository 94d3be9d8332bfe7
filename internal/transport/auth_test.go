package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/auth"
)

const testSecret = "test-secret"

func TestAuthMiddleware(t *testing.T) {
	token, err := auth.Sign(testSecret, "user-1", time.Hour)
	require.NoError(t, err)

	handler := AuthMiddleware(auth.NewVerifier(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "user-1", cred.Subject)
		require.Equal(t, token, cred.Token)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	token, err := auth.Sign("other-secret", "user-1", time.Hour)
	require.NoError(t, err)

	handler := AuthMiddleware(auth.NewVerifier(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_MissingTokenIsAnonymous(t *testing.T) {
	handler := AuthMiddleware(auth.NewVerifier(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		require.True(t, cred.Anonymous())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNoAuthMiddleware(t *testing.T) {
	handler := NoAuthMiddleware("local")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, _ := auth.FromContext(r.Context())
		require.Equal(t, "local", cred.Subject)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
