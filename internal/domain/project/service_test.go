package project_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/domain/validation"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/repository"
	"github.com/rpggio/phasetrack/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var cred = auth.Credential{Subject: "user-1", Token: "tok"}

func TestProjectService_CreateSeeds(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.ProjectRepository{}
	tracker := &mocks.ProgressTracker{}
	rec := &events.Recorder{}
	repo.On("Create", ctx, cred, mock.AnythingOfType("*project.Project")).Return(nil)
	tracker.On("Seed", ctx, cred, mock.AnythingOfType("string")).Return(nil)

	svc := project.NewService(repo, tracker, nil, rec, nil)
	desc := "  about it  "
	proj, err := svc.Create(ctx, cred, project.CreateRequest{Title: "  My Launch ", Description: &desc})
	require.NoError(t, err)
	require.NotEmpty(t, proj.ID)
	require.Equal(t, "My Launch", proj.Title)
	require.Equal(t, "about it", *proj.Description)
	require.Equal(t, "user-1", proj.OwnerID)
	require.False(t, proj.CreatedAt.IsZero())
	require.Equal(t, proj.CreatedAt, proj.UpdatedAt)

	tracker.AssertCalled(t, "Seed", ctx, cred, proj.ID)
	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, events.RoutingKeyProjectCreated, msgs[0].RoutingKey)
}

func TestProjectService_CreateSurvivesSeedFailure(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.ProjectRepository{}
	tracker := &mocks.ProgressTracker{}
	repo.On("Create", ctx, cred, mock.Anything).Return(nil)
	tracker.On("Seed", ctx, cred, mock.Anything).Return(errors.New("backend down"))

	svc := project.NewService(repo, tracker, nil, nil, nil)
	proj, err := svc.Create(ctx, cred, project.CreateRequest{Title: "Kept"})
	require.NoError(t, err)
	require.Equal(t, "Kept", proj.Title)
}

func TestProjectService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProjectRepository{}
	repo.On("Create", ctx, cred, mock.Anything).Return(nil)
	svc := project.NewService(repo, nil, nil, nil, nil)

	cases := []struct {
		name  string
		title string
		ok    bool
	}{
		{name: "empty", title: "", ok: false},
		{name: "blank", title: "   ", ok: false},
		{name: "one char", title: "a", ok: true},
		{name: "exactly 100", title: strings.Repeat("a", 100), ok: true},
		{name: "101", title: strings.Repeat("a", 101), ok: false},
		{name: "100 multibyte", title: strings.Repeat("é", 100), ok: true},
		{name: "padded 100", title: "  " + strings.Repeat("b", 100) + "  ", ok: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, cred, project.CreateRequest{Title: tc.title})
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, project.ErrInvalidInput)
			require.Equal(t, "title", validation.Details(err)[0].Field)
		})
	}

	long := strings.Repeat("d", 501)
	_, err := svc.Create(ctx, cred, project.CreateRequest{Title: "ok", Description: &long})
	require.ErrorIs(t, err, validation.ErrInvalid)
	require.Equal(t, "description", validation.Details(err)[0].Field)
}

func TestProjectService_CreateRequiresSubject(t *testing.T) {
	repo := &mocks.ProjectRepository{}
	svc := project.NewService(repo, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), auth.Credential{}, project.CreateRequest{Title: "x"})
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectService_GetNotFound(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProjectRepository{}
	repo.On("Get", ctx, cred, "missing").Return(nil, repository.ErrNotFound)

	svc := project.NewService(repo, nil, nil, nil, nil)
	_, err := svc.Get(ctx, cred, "missing")
	require.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestProjectService_UpdateMergesFields(t *testing.T) {
	ctx := context.Background()
	desc := "old"
	existing := &project.Project{ID: "p1", OwnerID: "user-1", Title: "Old", Description: &desc}

	repo := &mocks.ProjectRepository{}
	repo.On("Get", ctx, cred, "p1").Return(existing, nil)
	repo.On("Update", ctx, cred, mock.AnythingOfType("*project.Project")).Return(nil)

	svc := project.NewService(repo, nil, nil, nil, nil)
	title := "New"
	proj, err := svc.Update(ctx, cred, "p1", project.UpdateRequest{Title: &title})
	require.NoError(t, err)
	require.Equal(t, "New", proj.Title)
	require.Equal(t, "old", *proj.Description)
	require.False(t, proj.UpdatedAt.IsZero())

	tooLong := strings.Repeat("x", 101)
	_, err = svc.Update(ctx, cred, "p1", project.UpdateRequest{Title: &tooLong})
	require.ErrorIs(t, err, project.ErrInvalidInput)
}

func TestProjectService_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProjectRepository{}
	child := &mocks.ChildRemover{}
	repo.On("Get", ctx, cred, "p1").Return(&project.Project{ID: "p1"}, nil)
	repo.On("Delete", ctx, cred, "p1").Return(nil)
	child.On("DeleteByProject", ctx, cred, "p1").Return(nil)

	svc := project.NewService(repo, nil, []project.ChildRemover{child}, nil, nil)
	require.NoError(t, svc.Delete(ctx, cred, "p1"))
	child.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestProjectService_DeleteMissing(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProjectRepository{}
	child := &mocks.ChildRemover{}
	repo.On("Get", ctx, cred, "gone").Return(nil, repository.ErrNotFound)

	svc := project.NewService(repo, nil, []project.ChildRemover{child}, nil, nil)
	require.ErrorIs(t, svc.Delete(ctx, cred, "gone"), project.ErrProjectNotFound)
	child.AssertNotCalled(t, "DeleteByProject", mock.Anything, mock.Anything, mock.Anything)
}

func TestProjectService_Summaries(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProjectRepository{}
	tracker := &mocks.ProgressTracker{}
	repo.On("List", ctx, cred).Return([]project.Project{{ID: "a"}, {ID: "b"}}, nil)
	tracker.On("CompletionByProject", ctx, cred).Return(map[string]int{"a": 50}, nil)

	svc := project.NewService(repo, tracker, nil, nil, nil)
	out, err := svc.Summaries(ctx, cred)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, 50, out[0].CompletionPercent)
	require.Equal(t, 0, out[1].CompletionPercent)
}

func TestProjectService_ListEmptyIsNotNil(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.ProjectRepository{}
	repo.On("List", ctx, cred).Return(nil, nil)

	svc := project.NewService(repo, nil, nil, nil, nil)
	out, err := svc.List(ctx, cred)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Empty(t, out)
}
