package memstore

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ArtifactRepository implements artifact.Repository in memory.
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new ArtifactRepository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

func (r *ArtifactRepository) List(_ context.Context, cred auth.Credential, projectID string) ([]artifact.MasterArtifact, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]artifact.MasterArtifact, 0)
	for _, a := range r.db.artifacts {
		if projectID != "" && a.ProjectID != projectID {
			continue
		}
		if r.db.visible(cred, a.ProjectID) {
			out = append(out, a)
		}
	}
	sortNewestFirst(out,
		func(a artifact.MasterArtifact) int64 { return a.CreatedAt.UnixNano() },
		func(a artifact.MasterArtifact) string { return a.ID })
	return out, nil
}

func (r *ArtifactRepository) Get(_ context.Context, cred auth.Credential, id string) (*artifact.MasterArtifact, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.artifacts[id]
	if !ok || !r.db.visible(cred, a.ProjectID) {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r *ArtifactRepository) Create(_ context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, a.ProjectID) {
		return repository.ErrNotFound
	}
	if _, exists := r.db.artifacts[a.ID]; exists {
		return repository.ErrConflict
	}
	r.db.artifacts[a.ID] = *a
	return nil
}

func (r *ArtifactRepository) Update(_ context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.artifacts[a.ID]
	if !ok || !r.db.visible(cred, stored.ProjectID) {
		return repository.ErrNotFound
	}
	stored.ArtifactType = a.ArtifactType
	stored.ArtifactContent = a.ArtifactContent
	stored.UpdatedAt = a.UpdatedAt
	r.db.artifacts[a.ID] = stored
	return nil
}

func (r *ArtifactRepository) DeleteByProject(_ context.Context, cred auth.Credential, projectID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.visible(cred, projectID) {
		r.db.deleteArtifactsLocked(projectID)
	}
	return nil
}
