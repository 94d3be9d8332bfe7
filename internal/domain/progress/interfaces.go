package progress

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
)

// Repository provides persistence for phase records.
//
// Upsert inserts or updates by (ProjectID, ModuleNumber, PhaseNumber). On
// update the stored ID and CreatedAt are kept and written back into rec.
// Upsert and Seed return repository.ErrNotFound when the project is not
// visible to cred.
type Repository interface {
	List(ctx context.Context, cred auth.Credential, projectID string) ([]ModuleProgress, error)
	Get(ctx context.Context, cred auth.Credential, projectID string, moduleNumber, phaseNumber int) (*ModuleProgress, error)
	Upsert(ctx context.Context, cred auth.Credential, rec *ModuleProgress) error
	Seed(ctx context.Context, cred auth.Credential, projectID string, recs []ModuleProgress) error
	DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error
}
