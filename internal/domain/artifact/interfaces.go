package artifact

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
)

// Repository provides persistence for master artifacts. Create returns
// repository.ErrNotFound when the parent project is not visible to cred.
type Repository interface {
	List(ctx context.Context, cred auth.Credential, projectID string) ([]MasterArtifact, error)
	Get(ctx context.Context, cred auth.Credential, id string) (*MasterArtifact, error)
	Create(ctx context.Context, cred auth.Credential, a *MasterArtifact) error
	Update(ctx context.Context, cred auth.Credential, a *MasterArtifact) error
	DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error
}
