package mocks

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/stretchr/testify/mock"
)

// ProjectRepository is a mock for project.Repository.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, cred auth.Credential, proj *project.Project) error {
	args := m.Called(ctx, cred, proj)
	return args.Error(0)
}

func (m *ProjectRepository) Get(ctx context.Context, cred auth.Credential, id string) (*project.Project, error) {
	args := m.Called(ctx, cred, id)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context, cred auth.Credential) ([]project.Project, error) {
	args := m.Called(ctx, cred)
	if list, ok := args.Get(0).([]project.Project); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Update(ctx context.Context, cred auth.Credential, proj *project.Project) error {
	args := m.Called(ctx, cred, proj)
	return args.Error(0)
}

func (m *ProjectRepository) Delete(ctx context.Context, cred auth.Credential, id string) error {
	args := m.Called(ctx, cred, id)
	return args.Error(0)
}

// ProgressTracker is a mock for project.ProgressTracker.
type ProgressTracker struct {
	mock.Mock
}

func (m *ProgressTracker) Seed(ctx context.Context, cred auth.Credential, projectID string) error {
	args := m.Called(ctx, cred, projectID)
	return args.Error(0)
}

func (m *ProgressTracker) CompletionByProject(ctx context.Context, cred auth.Credential) (map[string]int, error) {
	args := m.Called(ctx, cred)
	if out, ok := args.Get(0).(map[string]int); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

// ChildRemover is a mock for project.ChildRemover.
type ChildRemover struct {
	mock.Mock
}

func (m *ChildRemover) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	args := m.Called(ctx, cred, projectID)
	return args.Error(0)
}

// ProgressRepository is a mock for progress.Repository.
type ProgressRepository struct {
	mock.Mock
}

func (m *ProgressRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error) {
	args := m.Called(ctx, cred, projectID)
	if list, ok := args.Get(0).([]progress.ModuleProgress); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProgressRepository) Get(ctx context.Context, cred auth.Credential, projectID string, moduleNumber, phaseNumber int) (*progress.ModuleProgress, error) {
	args := m.Called(ctx, cred, projectID, moduleNumber, phaseNumber)
	if rec, ok := args.Get(0).(*progress.ModuleProgress); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProgressRepository) Upsert(ctx context.Context, cred auth.Credential, rec *progress.ModuleProgress) error {
	args := m.Called(ctx, cred, rec)
	return args.Error(0)
}

func (m *ProgressRepository) Seed(ctx context.Context, cred auth.Credential, projectID string, recs []progress.ModuleProgress) error {
	args := m.Called(ctx, cred, projectID, recs)
	return args.Error(0)
}

func (m *ProgressRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	args := m.Called(ctx, cred, projectID)
	return args.Error(0)
}

// ArtifactRepository is a mock for artifact.Repository.
type ArtifactRepository struct {
	mock.Mock
}

func (m *ArtifactRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]artifact.MasterArtifact, error) {
	args := m.Called(ctx, cred, projectID)
	if list, ok := args.Get(0).([]artifact.MasterArtifact); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ArtifactRepository) Get(ctx context.Context, cred auth.Credential, id string) (*artifact.MasterArtifact, error) {
	args := m.Called(ctx, cred, id)
	if a, ok := args.Get(0).(*artifact.MasterArtifact); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ArtifactRepository) Create(ctx context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	args := m.Called(ctx, cred, a)
	return args.Error(0)
}

func (m *ArtifactRepository) Update(ctx context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	args := m.Called(ctx, cred, a)
	return args.Error(0)
}

func (m *ArtifactRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	args := m.Called(ctx, cred, projectID)
	return args.Error(0)
}

// NoteRepository is a mock for note.Repository.
type NoteRepository struct {
	mock.Mock
}

func (m *NoteRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]note.Note, error) {
	args := m.Called(ctx, cred, projectID)
	if list, ok := args.Get(0).([]note.Note); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *NoteRepository) Get(ctx context.Context, cred auth.Credential, id string) (*note.Note, error) {
	args := m.Called(ctx, cred, id)
	if n, ok := args.Get(0).(*note.Note); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *NoteRepository) Create(ctx context.Context, cred auth.Credential, n *note.Note) error {
	args := m.Called(ctx, cred, n)
	return args.Error(0)
}

func (m *NoteRepository) Update(ctx context.Context, cred auth.Credential, n *note.Note) error {
	args := m.Called(ctx, cred, n)
	return args.Error(0)
}

func (m *NoteRepository) Delete(ctx context.Context, cred auth.Credential, id string) error {
	args := m.Called(ctx, cred, id)
	return args.Error(0)
}

func (m *NoteRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	args := m.Called(ctx, cred, projectID)
	return args.Error(0)
}
