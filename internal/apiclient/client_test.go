package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/apiclient"
	"github.com/rpggio/phasetrack/internal/app"
	"github.com/rpggio/phasetrack/internal/autosave"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/storage"
	"github.com/rpggio/phasetrack/internal/transport"
)

func newClient(t *testing.T) *apiclient.Client {
	t.Helper()
	svcs := app.NewServices(storage.NewMemory(), catalog.Default(), nil, nil)
	srv := httptest.NewServer(transport.NewServer(transport.Config{
		Services: svcs.Transport(),
		Auth:     transport.NoAuthMiddleware("tester"),
	}))
	t.Cleanup(srv.Close)
	return apiclient.New(srv.URL+"/", "")
}

func TestClient_ProjectAndProgress(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	desc := "launch"
	proj, err := c.CreateProject(ctx, "Plan", &desc)
	require.NoError(t, err)
	require.Equal(t, "Plan", proj.Title)

	got, err := c.GetProject(ctx, proj.ID)
	require.NoError(t, err)
	require.Equal(t, proj.ID, got.ID)

	content := "An idea"
	rec, err := c.SaveModuleProgress(ctx, apiclient.SaveRequest{
		ProjectID: proj.ID, ModuleNumber: 1, PhaseNumber: 2, Content: &content,
	})
	require.NoError(t, err)
	require.Equal(t, progress.StatusCompleted, rec.Status)

	text, err := c.PhaseContent(ctx, proj.ID, 1, 2)
	require.NoError(t, err)
	require.Equal(t, "An idea", text)

	text, err = c.PhaseContent(ctx, proj.ID, 1, 1)
	require.NoError(t, err)
	require.Empty(t, text)

	list, err := c.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	mods, err := c.FrameworkModules(ctx)
	require.NoError(t, err)
	require.Len(t, mods, len(catalog.Default().Modules()))
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.GetProject(ctx, "missing")
	require.Error(t, err)
	require.True(t, apiclient.IsNotFound(err))

	_, err = c.CreateProject(ctx, "", nil)
	var apiErr *apiclient.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	require.False(t, apiErr.Retryable())
	require.NotEmpty(t, apiErr.Details)
	require.Equal(t, "title", apiErr.Details[0].Field)
	require.False(t, apiclient.IsNotFound(err))
}

func TestClient_Export(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	proj, err := c.CreateProject(ctx, "Exported", nil)
	require.NoError(t, err)

	data, err := c.Export(ctx, proj.ID, "markdown")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "# Exported"))

	_, err = c.Export(ctx, proj.ID, "pdf")
	require.Error(t, err)
}

func TestSaver_DrivesAutosave(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)
	proj, err := c.CreateProject(ctx, "Autosaved", nil)
	require.NoError(t, err)

	key := autosave.Key{ProjectID: proj.ID, ModuleNumber: 2, PhaseNumber: 1}
	sched := autosave.NewManualScheduler()
	ctrl := autosave.New(apiclient.Saver{Client: c}, key, "", autosave.Options{Scheduler: sched})

	require.NoError(t, ctrl.Edit("first draft"))
	sched.Advance(autosave.DefaultDelay)
	ctrl.Wait()
	require.Equal(t, autosave.Clean, ctrl.Status().State)

	text, err := c.PhaseContent(ctx, proj.ID, 2, 1)
	require.NoError(t, err)
	require.Equal(t, "first draft", text)

	require.NoError(t, ctrl.Edit("final"))
	require.NoError(t, ctrl.SaveAndClose(ctx))

	text, err = c.PhaseContent(ctx, proj.ID, 2, 1)
	require.NoError(t, err)
	require.Equal(t, "final", text)
}

func TestClient_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(slow.Close)

	c := apiclient.New(slow.URL, "").WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond})
	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
}
