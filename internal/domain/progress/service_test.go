package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/validation"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/repository"
	"github.com/rpggio/phasetrack/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var cred = auth.Credential{Subject: "user-1"}

func strPtr(s string) *string { return &s }

func TestResolveStatus(t *testing.T) {
	started := &progress.ModuleProgress{Status: progress.StatusInProgress}
	done := &progress.ModuleProgress{Status: progress.StatusCompleted}

	cases := []struct {
		name      string
		content   *string
		requested progress.Status
		existing  *progress.ModuleProgress
		fallback  progress.Status
		want      progress.Status
	}{
		{name: "content completes", content: strPtr("draft"), requested: progress.StatusNotStarted, want: progress.StatusCompleted},
		{name: "whitespace is empty", content: strPtr("  \n\t"), existing: started, want: progress.StatusInProgress},
		{name: "explicit status wins over existing", requested: progress.StatusNotStarted, existing: done, want: progress.StatusNotStarted},
		{name: "existing kept", existing: done, fallback: progress.StatusInProgress, want: progress.StatusCompleted},
		{name: "fallback on first save", fallback: progress.StatusInProgress, want: progress.StatusInProgress},
		{name: "nothing yields not started", want: progress.StatusNotStarted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, progress.ResolveStatus(tc.content, tc.requested, tc.existing, tc.fallback))
		})
	}
}

func TestProgressService_UpsertNew(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProgressRepository{}
	rec := &events.Recorder{}
	repo.On("Get", ctx, cred, "p1", 1, 2).Return(nil, repository.ErrNotFound)
	repo.On("Upsert", ctx, cred, mock.AnythingOfType("*progress.ModuleProgress")).Return(nil)

	svc := progress.NewService(repo, catalog.Default(), rec, nil)
	out, err := svc.Upsert(ctx, cred, progress.UpsertRequest{
		ProjectID:    "p1",
		ModuleNumber: 1,
		PhaseNumber:  2,
		Content:      strPtr("personas"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)
	require.Equal(t, progress.StatusCompleted, out.Status)
	require.Equal(t, "Audience Mapping", out.PhaseTitle)
	require.Equal(t, "Discovery & Problem Framing", out.ModuleTitle)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, events.RoutingKeyProgressUpdated, msgs[0].RoutingKey)
	require.Equal(t, "completed", msgs[0].Payload.(events.ProgressUpdated).Status)
}

func TestProgressService_UpsertKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	existing := &progress.ModuleProgress{
		ID:            "rec-1",
		ProjectID:     "p1",
		ModuleNumber:  1,
		PhaseNumber:   1,
		Status:        progress.StatusCompleted,
		PromptCreated: strPtr("prompt"),
		CreatedAt:     created,
	}
	repo := &mocks.ProgressRepository{}
	repo.On("Get", ctx, cred, "p1", 1, 1).Return(existing, nil)
	repo.On("Upsert", ctx, cred, mock.Anything).Return(nil)

	svc := progress.NewService(repo, catalog.Default(), nil, nil)
	out, err := svc.Upsert(ctx, cred, progress.UpsertRequest{
		ProjectID:      "p1",
		ModuleNumber:   1,
		PhaseNumber:    1,
		Content:        strPtr(""),
		FallbackStatus: progress.StatusInProgress,
	})
	require.NoError(t, err)
	require.Equal(t, "rec-1", out.ID)
	require.Equal(t, created, out.CreatedAt)
	require.True(t, out.UpdatedAt.After(created))
	require.Nil(t, out.Content)
	require.Equal(t, "prompt", *out.PromptCreated)
	require.Equal(t, progress.StatusCompleted, out.Status)
}

func TestProgressService_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProgressRepository{}
	svc := progress.NewService(repo, catalog.Default(), nil, nil)

	_, err := svc.Upsert(ctx, cred, progress.UpsertRequest{ModuleNumber: 1})
	require.ErrorIs(t, err, validation.ErrInvalid)
	require.Equal(t, "Missing required fields", validation.Message(err))
	require.Len(t, validation.Details(err), 2)

	_, err = svc.Upsert(ctx, cred, progress.UpsertRequest{ProjectID: "p1", ModuleNumber: 1, PhaseNumber: 99})
	require.ErrorIs(t, err, progress.ErrInvalidPhase)
	require.ErrorIs(t, err, validation.ErrInvalid)

	_, err = svc.Upsert(ctx, cred, progress.UpsertRequest{ProjectID: "p1", ModuleNumber: 1, PhaseNumber: 1, Status: "done"})
	require.ErrorIs(t, err, validation.ErrInvalid)

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestProgressService_UpsertUnknownProject(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProgressRepository{}
	repo.On("Get", ctx, cred, "nope", 1, 1).Return(nil, repository.ErrNotFound)
	repo.On("Upsert", ctx, cred, mock.Anything).Return(repository.ErrNotFound)

	svc := progress.NewService(repo, catalog.Default(), nil, nil)
	_, err := svc.Upsert(ctx, cred, progress.UpsertRequest{ProjectID: "nope", ModuleNumber: 1, PhaseNumber: 1})
	require.ErrorIs(t, err, validation.ErrInvalid)
	require.Equal(t, "projectId", validation.Details(err)[0].Field)
}

func TestProgressService_UpsertPublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProgressRepository{}
	repo.On("Get", ctx, cred, "p1", 1, 1).Return(nil, repository.ErrNotFound)
	repo.On("Upsert", ctx, cred, mock.Anything).Return(nil)

	svc := progress.NewService(repo, catalog.Default(), &events.Recorder{Err: errors.New("broker down")}, nil)
	_, err := svc.Upsert(ctx, cred, progress.UpsertRequest{ProjectID: "p1", ModuleNumber: 1, PhaseNumber: 1})
	require.NoError(t, err)
}

func TestProgressService_SeedAllPhases(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	repo := &mocks.ProgressRepository{}
	repo.On("Seed", ctx, cred, "p1", mock.MatchedBy(func(recs []progress.ModuleProgress) bool {
		if len(recs) != cat.TotalPhases() {
			return false
		}
		for _, r := range recs {
			if r.Status != progress.StatusNotStarted || r.ProjectID != "p1" || !cat.Contains(r.ModuleNumber, r.PhaseNumber) {
				return false
			}
		}
		return true
	})).Return(nil)

	svc := progress.NewService(repo, cat, nil, nil)
	require.NoError(t, svc.Seed(ctx, cred, "p1"))
	repo.AssertExpectations(t)
}

func TestProgressService_CompletionByProject(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	total := cat.TotalPhases()

	var recs []progress.ModuleProgress
	for i, p := range cat.AllPhases() {
		status := progress.StatusNotStarted
		if i%2 == 0 {
			status = progress.StatusCompleted
		}
		recs = append(recs, progress.ModuleProgress{ProjectID: "a", ModuleNumber: p.ModuleNumber, PhaseNumber: p.PhaseNumber, Status: status})
	}
	recs = append(recs, progress.ModuleProgress{ProjectID: "b", ModuleNumber: 1, PhaseNumber: 1, Status: progress.StatusCompleted})

	repo := &mocks.ProgressRepository{}
	repo.On("List", ctx, cred, "").Return(recs, nil)

	svc := progress.NewService(repo, cat, nil, nil)
	out, err := svc.CompletionByProject(ctx, cred)
	require.NoError(t, err)
	require.Equal(t, progress.CompletionPercent("a", recs, total), out["a"])
	require.Equal(t, progress.CompletionPercent("b", recs, total), out["b"])
	require.Equal(t, 50, out["a"])
}

func TestProgressService_ProjectCompletion(t *testing.T) {
	ctx := context.Background()
	cat := catalog.Default()
	repo := &mocks.ProgressRepository{}
	repo.On("List", ctx, cred, "p1").Return([]progress.ModuleProgress{
		{ProjectID: "p1", ModuleNumber: 1, PhaseNumber: 1, Status: progress.StatusCompleted},
		{ProjectID: "p1", ModuleNumber: 4, PhaseNumber: 3, Status: progress.StatusCompleted},
	}, nil)

	svc := progress.NewService(repo, cat, nil, nil)
	c, err := svc.ProjectCompletion(ctx, cred, "p1")
	require.NoError(t, err)
	require.Equal(t, 2, c.Completed)
	require.Equal(t, cat.TotalPhases(), c.Total)
	require.Equal(t, 14, c.Total)
	require.Equal(t, 14, c.Percent)
	require.Len(t, c.Modules, 4)
}

func TestProgressService_GetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProgressRepository{}
	repo.On("Get", ctx, cred, "p1", 1, 1).Return(nil, repository.ErrNotFound)

	svc := progress.NewService(repo, catalog.Default(), nil, nil)
	_, err := svc.Get(ctx, cred, "p1", 1, 1)
	require.ErrorIs(t, err, progress.ErrProgressNotFound)
}
