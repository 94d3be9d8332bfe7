package functional_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/testserver"
)

func createProject(t *testing.T, ts *testserver.TestServer, title string) project.Project {
	t.Helper()
	resp, data := ts.Do(t, http.MethodPost, "/api/projects", map[string]any{"title": title})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var p project.Project
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

func routingKeys(msgs []events.Message) []string {
	keys := make([]string, 0, len(msgs))
	for _, m := range msgs {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}

func TestAPI_RequiresTokenForWrites(t *testing.T) {
	ts := testserver.New(t, "owner")

	resp, _ := ts.DoWithToken(t, "", http.MethodPost, "/api/projects", map[string]any{"title": "Anonymous"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data := ts.DoWithToken(t, "garbage", http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, string(data), "Invalid or expired token")

	expired, err := auth.Sign(testserver.Secret, "owner", -time.Minute)
	require.NoError(t, err)
	resp, _ = ts.DoWithToken(t, expired, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = ts.DoWithToken(t, "", http.MethodGet, "/api/framework", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_PlanningWorkflow(t *testing.T) {
	ts := testserver.New(t, "owner")
	cat := catalog.Default()

	proj := createProject(t, ts, "Checkout Revamp")

	resp, data := ts.Do(t, http.MethodGet, "/api/module-progress?projectId="+proj.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var seeded []progress.ModuleProgress
	require.NoError(t, json.Unmarshal(data, &seeded))
	require.Len(t, seeded, cat.TotalPhases())
	for _, rec := range seeded {
		require.Equal(t, progress.StatusNotStarted, rec.Status)
	}

	for _, phase := range cat.PhasesByModule(1) {
		resp, data := ts.Do(t, http.MethodPost, "/api/module-progress", map[string]any{
			"projectId":    proj.ID,
			"moduleNumber": 1,
			"phaseNumber":  phase.PhaseNumber,
			"content":      "Answer for " + phase.Name,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	}

	resp, data = ts.Do(t, http.MethodGet, "/api/projects/"+proj.ID+"/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completion progress.Completion
	require.NoError(t, json.Unmarshal(data, &completion))
	require.Equal(t, len(cat.PhasesByModule(1)), completion.Completed)
	require.Equal(t, cat.TotalPhases(), completion.Total)

	resp, data = ts.Do(t, http.MethodPost, "/api/master-artifacts", map[string]any{
		"projectId": proj.ID, "artifactType": "problem_statement", "artifactContent": "Checkout is slow",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, data = ts.Do(t, http.MethodGet, "/api/projects/"+proj.ID+"/export?format=markdown", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "# Checkout Revamp")
	require.Contains(t, string(data), "Checkout is slow")

	require.Subset(t, routingKeys(ts.Events.Messages()), []string{
		events.RoutingKeyProjectCreated,
		events.RoutingKeyProgressUpdated,
	})
}

func TestAPI_DeleteProjectRemovesChildren(t *testing.T) {
	ts := testserver.New(t, "owner")
	proj := createProject(t, ts, "Short Lived")

	resp, data := ts.Do(t, http.MethodPost, "/api/notes", map[string]any{"projectId": proj.ID, "content": "note"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	resp, data = ts.Do(t, http.MethodPost, "/api/master-artifacts", map[string]any{
		"projectId": proj.ID, "artifactType": "prd", "artifactContent": "doc",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))

	resp, _ = ts.Do(t, http.MethodDelete, "/api/projects/"+proj.ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.Do(t, http.MethodGet, "/api/projects/"+proj.ID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, path := range []string{
		"/api/module-progress?projectId=" + proj.ID,
		"/api/master-artifacts?projectId=" + proj.ID,
		"/api/notes?projectId=" + proj.ID,
	} {
		resp, data := ts.Do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.JSONEq(t, "[]", string(data), path)
	}

	require.Contains(t, routingKeys(ts.Events.Messages()), events.RoutingKeyProjectDeleted)
}

func TestAPI_ReadyAndMetrics(t *testing.T) {
	ts := testserver.New(t, "owner")

	resp, _ := ts.DoWithToken(t, "", http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	createProject(t, ts, "Measured")
	resp, data := ts.DoWithToken(t, "", http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(data), "phasetrack_http_request_duration_seconds")
}
