// Package testserver runs the full HTTP and MCP surface over an in-memory
// SQLite database for end-to-end tests.
package testserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/app"
	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/config"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/sqlite"
	"github.com/rpggio/phasetrack/internal/storage"
)

// Secret signs the tokens accepted by a TestServer.
const Secret = "test-secret"

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlite.DB
	Services *app.Services
	Events   *events.Recorder
	Token    string
	Subject  string
}

// New starts a server with auth enabled and returns a token for subject.
func New(t *testing.T, subject string) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	_, err = db.RunMigrations(context.Background())
	require.NoError(t, err)

	recorder := &events.Recorder{}
	store := storage.NewSQLite(db)
	services := app.NewServices(store, catalog.Default(), recorder, nil)
	handler := services.Handler(app.HandlerOptions{
		Auth:       config.AuthConfig{Enabled: true, JWTSecret: Secret},
		Ready:      store.Ping,
		MCPEnabled: true,
		Version:    "test",
	})
	server := httptest.NewServer(handler)

	token, err := auth.Sign(Secret, subject, time.Hour)
	require.NoError(t, err)

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:   server,
		DB:       db,
		Services: services,
		Events:   recorder,
		Token:    token,
		Subject:  subject,
	}
}

// Do sends a JSON request with the server token and returns the response
// and its body.
func (ts *TestServer) Do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	return ts.DoWithToken(t, ts.Token, method, path, body)
}

// DoWithToken is Do with an explicit token. An empty token sends no
// Authorization header.
func (ts *TestServer) DoWithToken(t *testing.T, token, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.Server.URL+path, rdr)
	require.NoError(t, err)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}
