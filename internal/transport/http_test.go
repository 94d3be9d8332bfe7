package transport_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/ratelimit"
	"github.com/rpggio/phasetrack/internal/storage"
	"github.com/rpggio/phasetrack/internal/transport"
)

type apiServer struct {
	*httptest.Server
	t     *testing.T
	store *storage.Store
}

func newAPIServer(t *testing.T, mutate func(*transport.Config)) *apiServer {
	t.Helper()
	store := storage.NewMemory()
	svcs := app.NewServices(store, catalog.Default(), nil, nil)
	cfg := transport.Config{
		Services: svcs.Transport(),
		Auth:     transport.NoAuthMiddleware("tester"),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := httptest.NewServer(transport.NewServer(cfg))
	t.Cleanup(srv.Close)
	return &apiServer{Server: srv, t: t, store: store}
}

func (s *apiServer) do(method, path string, body any) (*http.Response, []byte) {
	s.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, rdr)
	require.NoError(s.t, err)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, data
}

func (s *apiServer) createProject(title string) project.Project {
	s.t.Helper()
	resp, data := s.do(http.MethodPost, "/api/projects", map[string]any{"title": title})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(data))
	var proj project.Project
	require.NoError(s.t, json.Unmarshal(data, &proj))
	return proj
}

func decodeError(t *testing.T, data []byte) transport.ErrorResponse {
	t.Helper()
	var body transport.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestHTTPServer_Health(t *testing.T) {
	srv := newAPIServer(t, nil)

	resp, _ := srv.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPServer_Ready(t *testing.T) {
	srv := newAPIServer(t, func(cfg *transport.Config) {
		cfg.Ready = func(context.Context) error { return errors.New("db down") }
	})

	resp, _ := srv.do(http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPServer_Metrics(t *testing.T) {
	srv := newAPIServer(t, nil)
	srv.do(http.MethodGet, "/api/framework/modules", nil)

	resp, data := srv.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "phasetrack_http_request_duration_seconds")
}

func TestProjects_CRUD(t *testing.T) {
	srv := newAPIServer(t, nil)

	created := srv.createProject("  Launch plan  ")
	require.Equal(t, "Launch plan", created.Title)
	require.Equal(t, "tester", created.OwnerID)

	resp, data := srv.do(http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []project.Summary
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	require.Equal(t, 0, list[0].CompletionPercent)

	resp, data = srv.do(http.MethodPatch, "/api/projects/"+created.ID, map[string]any{"description": "Now with a description"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var updated project.Project
	require.NoError(t, json.Unmarshal(data, &updated))
	require.Equal(t, "Launch plan", updated.Title)
	require.NotNil(t, updated.Description)
	require.Equal(t, "Now with a description", *updated.Description)

	resp, _ = srv.do(http.MethodDelete, "/api/projects/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = srv.do(http.MethodGet, "/api/projects/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Project not found", decodeError(t, data).Error)

	resp, data = srv.do(http.MethodGet, "/api/module-progress?projectId="+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "[]", string(data))
}

func TestProjects_TitleValidation(t *testing.T) {
	srv := newAPIServer(t, nil)

	tests := []struct {
		name   string
		title  string
		status int
	}{
		{name: "empty", title: "", status: http.StatusBadRequest},
		{name: "max length", title: strings.Repeat("a", 100), status: http.StatusCreated},
		{name: "too long", title: strings.Repeat("a", 101), status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := srv.do(http.MethodPost, "/api/projects", map[string]any{"title": tt.title})
			require.Equal(t, tt.status, resp.StatusCode, string(data))
			if tt.status == http.StatusBadRequest {
				body := decodeError(t, data)
				require.Equal(t, "Invalid project data", body.Error)
				require.NotEmpty(t, body.Details)
				require.Equal(t, "title", body.Details[0].Field)
			}
		})
	}
}

func TestProjects_MalformedBody(t *testing.T) {
	srv := newAPIServer(t, nil)

	resp, data := srv.do(http.MethodPost, "/api/projects", "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid project data", decodeError(t, data).Error)
}

func TestProjects_UnknownReturns404(t *testing.T) {
	srv := newAPIServer(t, nil)

	resp, _ := srv.do(http.MethodPatch, "/api/projects/missing", map[string]any{"title": "x"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(http.MethodDelete, "/api/projects/missing", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModuleProgress_SaveAndAggregate(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("Plan")

	resp, data := srv.do(http.MethodGet, "/api/module-progress?projectId="+proj.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seeded []progress.ModuleProgress
	require.NoError(t, json.Unmarshal(data, &seeded))
	require.Len(t, seeded, catalog.Default().TotalPhases())

	save := map[string]any{
		"projectId":     proj.ID,
		"moduleNumber":  1,
		"phaseNumber":   1,
		"content":       "An idea",
		"promptCreated": "Act as a PM",
	}
	resp, data = srv.do(http.MethodPost, "/api/module-progress", save)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var rec progress.ModuleProgress
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, progress.StatusCompleted, rec.Status)
	require.Equal(t, "Act as a PM", *rec.PromptCreated)

	// Saving again updates the same record.
	save["content"] = "A better idea"
	resp, data = srv.do(http.MethodPost, "/api/module-progress", save)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var again progress.ModuleProgress
	require.NoError(t, json.Unmarshal(data, &again))
	require.Equal(t, rec.ID, again.ID)

	resp, data = srv.do(http.MethodGet, "/api/projects/"+proj.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completion progress.Completion
	require.NoError(t, json.Unmarshal(data, &completion))
	require.Equal(t, 1, completion.Completed)
	require.Equal(t, catalog.Default().TotalPhases(), completion.Total)
	require.Equal(t, 7, completion.Percent)

	resp, data = srv.do(http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []project.Summary
	require.NoError(t, json.Unmarshal(data, &list))
	require.Equal(t, 7, list[0].CompletionPercent)
}

func TestModuleProgress_EmptyContentKeepsSeededStatus(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("Plan")

	resp, data := srv.do(http.MethodPost, "/api/module-progress", map[string]any{
		"projectId": proj.ID, "moduleNumber": 2, "phaseNumber": 1, "content": "",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var rec progress.ModuleProgress
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, progress.StatusNotStarted, rec.Status)
	require.Nil(t, rec.Content)
}

func TestModuleProgress_EmptyContentWithoutRecordIsInProgress(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("Plan")

	cred := auth.Credential{Subject: "tester"}
	require.NoError(t, srv.store.Progress.DeleteByProject(context.Background(), cred, proj.ID))

	resp, data := srv.do(http.MethodPost, "/api/module-progress", map[string]any{
		"projectId": proj.ID, "moduleNumber": 2, "phaseNumber": 1, "content": "",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var rec progress.ModuleProgress
	require.NoError(t, json.Unmarshal(data, &rec))
	require.Equal(t, progress.StatusInProgress, rec.Status)
	require.Nil(t, rec.Content)
}

func TestModuleProgress_Validation(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("Plan")

	resp, data := srv.do(http.MethodPost, "/api/module-progress", map[string]any{"projectId": proj.ID})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Missing required fields", decodeError(t, data).Error)

	resp, data = srv.do(http.MethodPost, "/api/module-progress", map[string]any{
		"projectId": proj.ID, "moduleNumber": 9, "phaseNumber": 1,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid module or phase number", decodeError(t, data).Error)

	resp, data = srv.do(http.MethodPost, "/api/module-progress", map[string]any{
		"projectId": "missing", "moduleNumber": 1, "phaseNumber": 1,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "projectId", decodeError(t, data).Details[0].Field)
}

func TestMasterArtifacts(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("Plan")

	resp, data := srv.do(http.MethodPost, "/api/master-artifacts", map[string]any{
		"projectId": proj.ID, "artifactType": "prd", "artifactContent": "The PRD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = srv.do(http.MethodPost, "/api/master-artifacts", map[string]any{"projectId": proj.ID})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid artifact data", decodeError(t, data).Error)

	resp, data = srv.do(http.MethodGet, "/api/master-artifacts?projectId="+proj.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(data, &list))
	require.Len(t, list, 1)
	require.Equal(t, "prd", list[0]["artifactType"])
}

func TestNotes(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("Plan")

	resp, data := srv.do(http.MethodPost, "/api/notes", map[string]any{"projectId": proj.ID, "content": "first"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var created map[string]any
	require.NoError(t, json.Unmarshal(data, &created))
	id := created["id"].(string)

	resp, data = srv.do(http.MethodPatch, "/api/notes/"+id, map[string]any{"content": "edited"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.Contains(t, string(data), `"edited"`)

	resp, data = srv.do(http.MethodPatch, "/api/notes/"+id, map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid note content", decodeError(t, data).Error)

	resp, data = srv.do(http.MethodPatch, "/api/notes/missing", map[string]any{"content": "x"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Note not found", decodeError(t, data).Error)

	resp, _ = srv.do(http.MethodDelete, "/api/notes/"+id, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = srv.do(http.MethodGet, "/api/notes?projectId="+proj.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "[]", string(data))
}

func TestFramework(t *testing.T) {
	srv := newAPIServer(t, nil)

	resp, data := srv.do(http.MethodGet, "/api/framework/modules", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var modules []catalog.Module
	require.NoError(t, json.Unmarshal(data, &modules))
	require.Len(t, modules, len(catalog.Default().Modules()))

	resp, data = srv.do(http.MethodGet, "/api/framework/modules/1/phases", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var phases []catalog.Phase
	require.NoError(t, json.Unmarshal(data, &phases))
	require.Len(t, phases, len(catalog.Default().PhasesByModule(1)))

	resp, data = srv.do(http.MethodGet, "/api/framework/modules/99/phases", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, "[]", string(data))

	resp, data = srv.do(http.MethodGet, "/api/framework/modules/abc/phases", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Invalid module number", decodeError(t, data).Error)

	resp, data = srv.do(http.MethodGet, "/api/framework", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"totalPhases":14`)
}

func TestExport(t *testing.T) {
	srv := newAPIServer(t, nil)
	proj := srv.createProject("My Launch Plan")

	resp, data := srv.do(http.MethodGet, "/api/projects/"+proj.ID+"/export?format=markdown", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/markdown; charset=utf-8", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), `filename="My-Launch-Plan.md"`)
	require.True(t, strings.HasPrefix(string(data), "# My Launch Plan"))

	resp, data = srv.do(http.MethodGet, "/api/projects/"+proj.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), `"moduleProgress"`)

	resp, _ = srv.do(http.MethodGet, "/api/projects/"+proj.ID+"/export?format=pdf", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(http.MethodGet, "/api/projects/missing/export", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	srv := newAPIServer(t, func(cfg *transport.Config) {
		limiter := ratelimit.New(ratelimit.NewMemoryStore(), time.Minute, 2, nil)
		cfg.RateLimit = limiter.Middleware
	})

	for i := 0; i < 2; i++ {
		resp, _ := srv.do(http.MethodGet, "/api/framework/modules", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, data := srv.do(http.MethodGet, "/api/framework/modules", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, ratelimit.Message(time.Minute), decodeError(t, data).Error)

	// Ops endpoints are outside the limiter.
	resp, _ = srv.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
