package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/apiclient"
	"github.com/rpggio/phasetrack/internal/app"
	"github.com/rpggio/phasetrack/internal/autosave"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/config"
	"github.com/rpggio/phasetrack/internal/storage"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelError, parseLogLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLogLevel(""))
	require.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestLogFileWriterKeepsTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	w, file, err := newLogFileWriter(path)
	require.NoError(t, err)
	defer file.Close()

	chunk := bytes.Repeat([]byte("a"), 1024*1024)
	for i := 0; i < 6; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}
	_, err = w.Write([]byte("last line\n"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(keepLogSizeBytes), info.Size())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(data), "last line\n"))
}

func TestNewRateLimiterDisabled(t *testing.T) {
	mw, closeFn := newRateLimiter(config.RateLimitConfig{Enabled: false}, nil)
	defer closeFn()
	require.Nil(t, mw)
}

func TestLoadCatalogDefault(t *testing.T) {
	cat, err := loadCatalog(config.CatalogConfig{})
	require.NoError(t, err)
	require.Equal(t, catalog.Default().TotalPhases(), cat.TotalPhases())

	_, err = loadCatalog(config.CatalogConfig{Path: filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}

func TestRunEditor(t *testing.T) {
	services := app.NewServices(storage.NewMemory(), catalog.Default(), nil, nil)
	srv := httptest.NewServer(services.Handler(app.HandlerOptions{
		Auth: config.AuthConfig{DefaultSubject: "tester"},
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	client := apiclient.New(srv.URL, "")
	proj, err := client.CreateProject(ctx, "Editor", nil)
	require.NoError(t, err)

	input := strings.Join([]string{
		"first line",
		"second line",
		":save",
		":switch 1 2",
		"other phase",
	}, "\n")
	var status bytes.Buffer
	key := autosave.Key{ProjectID: proj.ID, ModuleNumber: 1, PhaseNumber: 1}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	err = runEditor(ctx, client, key, time.Hour, strings.NewReader(input), &status, logger)
	require.NoError(t, err)

	text, err := client.PhaseContent(ctx, proj.ID, 1, 1)
	require.NoError(t, err)
	require.Equal(t, "first line\nsecond line", text)

	text, err = client.PhaseContent(ctx, proj.ID, 1, 2)
	require.NoError(t, err)
	require.Equal(t, "other phase", text)

	require.Contains(t, status.String(), "saved 1.1")
	require.Contains(t, status.String(), "saved 1.2")
}
