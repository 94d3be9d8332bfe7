package memstore

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ProjectRepository implements project.Repository in memory.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func cloneProject(p project.Project) project.Project {
	p.Description = cloneString(p.Description)
	return p
}

// Create stores a new project owned by cred.
func (r *ProjectRepository) Create(_ context.Context, cred auth.Credential, proj *project.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.projects[proj.ID]; exists {
		return repository.ErrConflict
	}
	stored := cloneProject(*proj)
	stored.OwnerID = cred.Subject
	r.db.projects[proj.ID] = stored
	proj.OwnerID = cred.Subject
	return nil
}

// Get returns the project if it belongs to cred.
func (r *ProjectRepository) Get(_ context.Context, cred auth.Credential, id string) (*project.Project, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if !r.db.visible(cred, id) {
		return nil, repository.ErrNotFound
	}
	p := cloneProject(r.db.projects[id])
	return &p, nil
}

// List returns the caller's projects, newest first.
func (r *ProjectRepository) List(_ context.Context, cred auth.Credential) ([]project.Project, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]project.Project, 0)
	for _, p := range r.db.projects {
		if p.OwnerID == cred.Subject {
			out = append(out, cloneProject(p))
		}
	}
	sortNewestFirst(out,
		func(p project.Project) int64 { return p.CreatedAt.UnixNano() },
		func(p project.Project) string { return p.ID })
	return out, nil
}

// Update replaces title, description and updatedAt.
func (r *ProjectRepository) Update(_ context.Context, cred auth.Credential, proj *project.Project) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, proj.ID) {
		return repository.ErrNotFound
	}
	stored := r.db.projects[proj.ID]
	stored.Title = proj.Title
	stored.Description = cloneString(proj.Description)
	stored.UpdatedAt = proj.UpdatedAt
	r.db.projects[proj.ID] = stored
	return nil
}

// Delete removes the project and all of its children.
func (r *ProjectRepository) Delete(_ context.Context, cred auth.Credential, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, id) {
		return repository.ErrNotFound
	}
	r.db.deleteProgressLocked(id)
	r.db.deleteArtifactsLocked(id)
	r.db.deleteNotesLocked(id)
	delete(r.db.projects, id)
	return nil
}
