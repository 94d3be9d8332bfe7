package note

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
)

// Repository provides persistence for notes.
type Repository interface {
	List(ctx context.Context, cred auth.Credential, projectID string) ([]Note, error)
	Get(ctx context.Context, cred auth.Credential, id string) (*Note, error)
	Create(ctx context.Context, cred auth.Credential, n *Note) error
	Update(ctx context.Context, cred auth.Credential, n *Note) error
	Delete(ctx context.Context, cred auth.Credential, id string) error
	DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error
}
