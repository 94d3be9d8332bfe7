// Package storetest is a behavioural suite every storage backend must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/repository"
	"github.com/rpggio/phasetrack/internal/storage"
)

// Factory returns an empty, migrated store.
type Factory func(t *testing.T) *storage.Store

var (
	alice = auth.Credential{Subject: "alice"}
	bob   = auth.Credential{Subject: "bob"}
	base  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Projects", func(t *testing.T) { testProjects(t, newStore(t)) })
	t.Run("ProjectIsolation", func(t *testing.T) { testProjectIsolation(t, newStore(t)) })
	t.Run("ProjectDeleteCascades", func(t *testing.T) { testProjectDeleteCascades(t, newStore(t)) })
	t.Run("ProgressUpsert", func(t *testing.T) { testProgressUpsert(t, newStore(t)) })
	t.Run("ProgressSeed", func(t *testing.T) { testProgressSeed(t, newStore(t)) })
	t.Run("ProgressList", func(t *testing.T) { testProgressList(t, newStore(t)) })
	t.Run("Artifacts", func(t *testing.T) { testArtifacts(t, newStore(t)) })
	t.Run("Notes", func(t *testing.T) { testNotes(t, newStore(t)) })
}

func createProject(t *testing.T, s *storage.Store, cred auth.Credential, id string, at time.Time) *project.Project {
	t.Helper()
	p := &project.Project{
		ID:          id,
		Title:       "Project " + id,
		Description: strPtr("about " + id),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	require.NoError(t, s.Projects.Create(context.Background(), cred, p))
	return p
}

func testProjects(t *testing.T, s *storage.Store) {
	ctx := context.Background()

	p1 := createProject(t, s, alice, "p1", base)
	require.Equal(t, "alice", p1.OwnerID)
	createProject(t, s, alice, "p2", base.Add(time.Minute))

	err := s.Projects.Create(ctx, alice, &project.Project{ID: "p1", Title: "dup", CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, repository.ErrConflict)

	got, err := s.Projects.Get(ctx, alice, "p1")
	require.NoError(t, err)
	require.Equal(t, "Project p1", got.Title)
	require.Equal(t, "about p1", *got.Description)
	require.Equal(t, "alice", got.OwnerID)
	require.WithinDuration(t, base, got.CreatedAt, time.Millisecond)

	list, err := s.Projects.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "p2", list[0].ID)
	require.Equal(t, "p1", list[1].ID)

	got.Title = "Renamed"
	got.Description = nil
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.Projects.Update(ctx, alice, got))

	got, err = s.Projects.Get(ctx, alice, "p1")
	require.NoError(t, err)
	require.Equal(t, "Renamed", got.Title)
	require.Nil(t, got.Description)
	require.WithinDuration(t, base.Add(time.Hour), got.UpdatedAt, time.Millisecond)

	err = s.Projects.Update(ctx, alice, &project.Project{ID: "missing", Title: "x", UpdatedAt: base})
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.Projects.Delete(ctx, alice, "p2"))
	_, err = s.Projects.Get(ctx, alice, "p2")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, s.Projects.Delete(ctx, alice, "p2"), repository.ErrNotFound)
}

func testProjectIsolation(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "pa", base)

	_, err := s.Projects.Get(ctx, bob, "pa")
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := s.Projects.List(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	require.ErrorIs(t, s.Projects.Update(ctx, bob, &project.Project{ID: "pa", Title: "x", UpdatedAt: base}), repository.ErrNotFound)
	require.ErrorIs(t, s.Projects.Delete(ctx, bob, "pa"), repository.ErrNotFound)

	err = s.Progress.Upsert(ctx, bob, &progress.ModuleProgress{
		ID: "m1", ProjectID: "pa", ModuleNumber: 1, ModuleTitle: "M", PhaseNumber: 1, PhaseTitle: "P",
		Status: progress.StatusNotStarted, CreatedAt: base, UpdatedAt: base,
	})
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = s.Notes.Create(ctx, bob, &note.Note{ID: "n1", ProjectID: "pa", Content: strPtr("x"), CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = s.Artifacts.Create(ctx, bob, &artifact.MasterArtifact{ID: "a1", ProjectID: "pa", ArtifactType: "prd", ArtifactContent: "x", CreatedAt: base, UpdatedAt: base})
	require.ErrorIs(t, err, repository.ErrNotFound)

	_, err = s.Projects.Get(ctx, alice, "pa")
	require.NoError(t, err)
}

func testProjectDeleteCascades(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "p1", base)
	createProject(t, s, alice, "p2", base)

	for _, pid := range []string{"p1", "p2"} {
		require.NoError(t, s.Progress.Upsert(ctx, alice, &progress.ModuleProgress{
			ID: "m-" + pid, ProjectID: pid, ModuleNumber: 1, ModuleTitle: "M", PhaseNumber: 1, PhaseTitle: "P",
			Status: progress.StatusCompleted, CreatedAt: base, UpdatedAt: base,
		}))
		require.NoError(t, s.Notes.Create(ctx, alice, &note.Note{ID: "n-" + pid, ProjectID: pid, Content: strPtr("x"), CreatedAt: base, UpdatedAt: base}))
		require.NoError(t, s.Artifacts.Create(ctx, alice, &artifact.MasterArtifact{ID: "a-" + pid, ProjectID: pid, ArtifactType: "prd", ArtifactContent: "x", CreatedAt: base, UpdatedAt: base}))
	}

	require.NoError(t, s.Projects.Delete(ctx, alice, "p1"))

	recs, err := s.Progress.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "p2", recs[0].ProjectID)

	notes, err := s.Notes.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	_, err = s.Notes.Get(ctx, alice, "n-p1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	arts, err := s.Artifacts.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	require.Equal(t, "a-p2", arts[0].ID)
}

func testProgressUpsert(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "p1", base)

	rec := &progress.ModuleProgress{
		ID:            "m1",
		ProjectID:     "p1",
		ModuleNumber:  1,
		ModuleTitle:   "Discovery",
		PhaseNumber:   2,
		PhaseTitle:    "Audience",
		Content:       strPtr("draft"),
		PromptCreated: strPtr("prompt"),
		Status:        progress.StatusInProgress,
		CreatedAt:     base,
		UpdatedAt:     base,
	}
	require.NoError(t, s.Progress.Upsert(ctx, alice, rec))

	got, err := s.Progress.Get(ctx, alice, "p1", 1, 2)
	require.NoError(t, err)
	require.Equal(t, "m1", got.ID)
	require.Equal(t, "draft", *got.Content)
	require.Equal(t, "prompt", *got.PromptCreated)
	require.Equal(t, progress.StatusInProgress, got.Status)
	require.Equal(t, "Audience", got.PhaseTitle)

	later := base.Add(time.Hour)
	second := &progress.ModuleProgress{
		ID:           "m-other",
		ProjectID:    "p1",
		ModuleNumber: 1,
		ModuleTitle:  "Discovery",
		PhaseNumber:  2,
		PhaseTitle:   "Audience",
		Status:       progress.StatusCompleted,
		CreatedAt:    later,
		UpdatedAt:    later,
	}
	require.NoError(t, s.Progress.Upsert(ctx, alice, second))
	require.Equal(t, "m1", second.ID)
	require.WithinDuration(t, base, second.CreatedAt, time.Millisecond)

	got, err = s.Progress.Get(ctx, alice, "p1", 1, 2)
	require.NoError(t, err)
	require.Equal(t, "m1", got.ID)
	require.Nil(t, got.Content)
	require.Nil(t, got.PromptCreated)
	require.Equal(t, progress.StatusCompleted, got.Status)
	require.WithinDuration(t, base, got.CreatedAt, time.Millisecond)
	require.WithinDuration(t, later, got.UpdatedAt, time.Millisecond)

	recs, err := s.Progress.List(ctx, alice, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	proj, err := s.Projects.Get(ctx, alice, "p1")
	require.NoError(t, err)
	require.WithinDuration(t, later, proj.UpdatedAt, time.Millisecond)

	_, err = s.Progress.Get(ctx, alice, "p1", 3, 3)
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = s.Progress.Upsert(ctx, alice, &progress.ModuleProgress{
		ID: "m2", ProjectID: "missing", ModuleNumber: 1, ModuleTitle: "M", PhaseNumber: 1, PhaseTitle: "P",
		Status: progress.StatusNotStarted, CreatedAt: base, UpdatedAt: base,
	})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func seedRecords(projectID string, n int, at time.Time) []progress.ModuleProgress {
	out := make([]progress.ModuleProgress, n)
	for i := range out {
		out[i] = progress.ModuleProgress{
			ID:           fmt.Sprintf("%s-seed-%d", projectID, i),
			ProjectID:    projectID,
			ModuleNumber: 1,
			ModuleTitle:  "M",
			PhaseNumber:  i + 1,
			PhaseTitle:   fmt.Sprintf("P%d", i+1),
			Status:       progress.StatusNotStarted,
			CreatedAt:    at,
			UpdatedAt:    at,
		}
	}
	return out
}

func testProgressSeed(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "p1", base)

	require.NoError(t, s.Progress.Upsert(ctx, alice, &progress.ModuleProgress{
		ID: "kept", ProjectID: "p1", ModuleNumber: 1, ModuleTitle: "M", PhaseNumber: 2, PhaseTitle: "P2",
		Content: strPtr("work"), Status: progress.StatusCompleted, CreatedAt: base, UpdatedAt: base,
	}))

	require.NoError(t, s.Progress.Seed(ctx, alice, "p1", seedRecords("p1", 3, base)))
	require.NoError(t, s.Progress.Seed(ctx, alice, "p1", seedRecords("p1", 3, base)))

	recs, err := s.Progress.List(ctx, alice, "p1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, "kept", recs[1].ID)
	require.Equal(t, progress.StatusCompleted, recs[1].Status)
	require.Equal(t, progress.StatusNotStarted, recs[0].Status)

	require.ErrorIs(t, s.Progress.Seed(ctx, bob, "p1", seedRecords("p1", 1, base)), repository.ErrNotFound)
}

func testProgressList(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "pa", base)
	createProject(t, s, alice, "pb", base)
	createProject(t, s, bob, "pc", base)

	require.NoError(t, s.Progress.Seed(ctx, alice, "pb", seedRecords("pb", 2, base)))
	require.NoError(t, s.Progress.Seed(ctx, alice, "pa", seedRecords("pa", 3, base)))
	require.NoError(t, s.Progress.Seed(ctx, bob, "pc", seedRecords("pc", 4, base)))

	all, err := s.Progress.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, all, 5)
	require.Equal(t, "pa", all[0].ProjectID)
	require.Equal(t, 1, all[0].PhaseNumber)
	require.Equal(t, 3, all[2].PhaseNumber)
	require.Equal(t, "pb", all[4].ProjectID)

	one, err := s.Progress.List(ctx, alice, "pb")
	require.NoError(t, err)
	require.Len(t, one, 2)

	other, err := s.Progress.List(ctx, alice, "pc")
	require.NoError(t, err)
	require.NotNil(t, other)
	require.Empty(t, other)

	require.NoError(t, s.Progress.DeleteByProject(ctx, alice, "pa"))
	all, err = s.Progress.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, s.Progress.DeleteByProject(ctx, alice, "pc"))
	theirs, err := s.Progress.List(ctx, bob, "pc")
	require.NoError(t, err)
	require.Len(t, theirs, 4)
}

func testArtifacts(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "p1", base)
	createProject(t, s, alice, "p2", base)

	require.NoError(t, s.Artifacts.Create(ctx, alice, &artifact.MasterArtifact{
		ID: "a1", ProjectID: "p1", ArtifactType: "prd", ArtifactContent: "first", CreatedAt: base, UpdatedAt: base,
	}))
	require.NoError(t, s.Artifacts.Create(ctx, alice, &artifact.MasterArtifact{
		ID: "a2", ProjectID: "p1", ArtifactType: "architecture", ArtifactContent: "second", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, s.Artifacts.Create(ctx, alice, &artifact.MasterArtifact{
		ID: "a3", ProjectID: "p2", ArtifactType: "prd", ArtifactContent: "third", CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute),
	}))

	err := s.Artifacts.Create(ctx, alice, &artifact.MasterArtifact{
		ID: "a4", ProjectID: "missing", ArtifactType: "prd", ArtifactContent: "x", CreatedAt: base, UpdatedAt: base,
	})
	require.ErrorIs(t, err, repository.ErrNotFound)

	list, err := s.Artifacts.List(ctx, alice, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a2", list[0].ID)
	require.Equal(t, "a1", list[1].ID)

	all, err := s.Artifacts.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "a3", all[0].ID)

	got, err := s.Artifacts.Get(ctx, alice, "a1")
	require.NoError(t, err)
	require.Equal(t, "first", got.ArtifactContent)

	_, err = s.Artifacts.Get(ctx, bob, "a1")
	require.ErrorIs(t, err, repository.ErrNotFound)

	got.ArtifactContent = "revised"
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.Artifacts.Update(ctx, alice, got))
	got, err = s.Artifacts.Get(ctx, alice, "a1")
	require.NoError(t, err)
	require.Equal(t, "revised", got.ArtifactContent)

	require.ErrorIs(t, s.Artifacts.Update(ctx, bob, got), repository.ErrNotFound)

	require.NoError(t, s.Artifacts.DeleteByProject(ctx, alice, "p1"))
	all, err = s.Artifacts.List(ctx, alice, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func testNotes(t *testing.T, s *storage.Store) {
	ctx := context.Background()
	createProject(t, s, alice, "p1", base)

	require.NoError(t, s.Notes.Create(ctx, alice, &note.Note{ID: "n1", ProjectID: "p1", Content: strPtr("one"), CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, s.Notes.Create(ctx, alice, &note.Note{ID: "n2", ProjectID: "p1", Content: nil, CreatedAt: base.Add(time.Second), UpdatedAt: base.Add(time.Second)}))
	require.NoError(t, s.Notes.Create(ctx, alice, &note.Note{ID: "n0", ProjectID: "p1", Content: strPtr("tie"), CreatedAt: base, UpdatedAt: base}))

	list, err := s.Notes.List(ctx, alice, "p1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "n2", list[0].ID)
	require.Nil(t, list[0].Content)
	require.Equal(t, "n1", list[1].ID)
	require.Equal(t, "n0", list[2].ID)

	n, err := s.Notes.Get(ctx, alice, "n1")
	require.NoError(t, err)
	n.Content = strPtr("updated")
	n.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.Notes.Update(ctx, alice, n))

	n, err = s.Notes.Get(ctx, alice, "n1")
	require.NoError(t, err)
	require.Equal(t, "updated", *n.Content)
	require.WithinDuration(t, base.Add(time.Hour), n.UpdatedAt, time.Millisecond)

	require.ErrorIs(t, s.Notes.Update(ctx, alice, &note.Note{ID: "missing", UpdatedAt: base}), repository.ErrNotFound)
	require.ErrorIs(t, s.Notes.Delete(ctx, bob, "n1"), repository.ErrNotFound)

	require.NoError(t, s.Notes.Delete(ctx, alice, "n1"))
	_, err = s.Notes.Get(ctx, alice, "n1")
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, s.Notes.Delete(ctx, alice, "n1"), repository.ErrNotFound)

	require.NoError(t, s.Notes.DeleteByProject(ctx, alice, "p1"))
	list, err = s.Notes.List(ctx, alice, "p1")
	require.NoError(t, err)
	require.Empty(t, list)
}
