package project

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
)

// Repository provides persistence for projects.
type Repository interface {
	Create(ctx context.Context, cred auth.Credential, proj *Project) error
	Get(ctx context.Context, cred auth.Credential, id string) (*Project, error)
	List(ctx context.Context, cred auth.Credential) ([]Project, error)
	Update(ctx context.Context, cred auth.Credential, proj *Project) error
	Delete(ctx context.Context, cred auth.Credential, id string) error
}

// ProgressTracker seeds and aggregates phase records for projects.
type ProgressTracker interface {
	Seed(ctx context.Context, cred auth.Credential, projectID string) error
	CompletionByProject(ctx context.Context, cred auth.Credential) (map[string]int, error)
}

// ChildRemover deletes records that belong to a project.
type ChildRemover interface {
	DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error
}
