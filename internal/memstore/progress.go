package memstore

import (
	"context"
	"sort"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ProgressRepository implements progress.Repository in memory.
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new ProgressRepository
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func cloneProgress(rec progress.ModuleProgress) progress.ModuleProgress {
	rec.Content = cloneString(rec.Content)
	rec.PromptCreated = cloneString(rec.PromptCreated)
	return rec
}

// List returns records of projectID, or of every caller project when empty,
// ordered by project, module and phase.
func (r *ProgressRepository) List(_ context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]progress.ModuleProgress, 0)
	for _, rec := range r.db.progress {
		if projectID != "" && rec.ProjectID != projectID {
			continue
		}
		if !r.db.visible(cred, rec.ProjectID) {
			continue
		}
		out = append(out, cloneProgress(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.ModuleNumber != b.ModuleNumber {
			return a.ModuleNumber < b.ModuleNumber
		}
		return a.PhaseNumber < b.PhaseNumber
	})
	return out, nil
}

// Get returns the record at the composite key.
func (r *ProgressRepository) Get(_ context.Context, cred auth.Credential, projectID string, moduleNumber, phaseNumber int) (*progress.ModuleProgress, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	if !r.db.visible(cred, projectID) {
		return nil, repository.ErrNotFound
	}
	id, ok := r.db.byPhase[phaseKey{projectID, moduleNumber, phaseNumber}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec := cloneProgress(r.db.progress[id])
	return &rec, nil
}

// Upsert inserts or updates by composite key and touches the project.
func (r *ProgressRepository) Upsert(_ context.Context, cred auth.Credential, rec *progress.ModuleProgress) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, rec.ProjectID) {
		return repository.ErrNotFound
	}

	key := phaseKey{rec.ProjectID, rec.ModuleNumber, rec.PhaseNumber}
	if id, ok := r.db.byPhase[key]; ok {
		existing := r.db.progress[id]
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}
	r.db.progress[rec.ID] = cloneProgress(*rec)
	r.db.byPhase[key] = rec.ID

	proj := r.db.projects[rec.ProjectID]
	proj.UpdatedAt = rec.UpdatedAt
	r.db.projects[rec.ProjectID] = proj
	return nil
}

// Seed inserts records whose composite key is not yet present.
func (r *ProgressRepository) Seed(_ context.Context, cred auth.Credential, projectID string, recs []progress.ModuleProgress) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, projectID) {
		return repository.ErrNotFound
	}
	for _, rec := range recs {
		rec.ProjectID = projectID
		key := phaseKey{projectID, rec.ModuleNumber, rec.PhaseNumber}
		if _, ok := r.db.byPhase[key]; ok {
			continue
		}
		r.db.progress[rec.ID] = cloneProgress(rec)
		r.db.byPhase[key] = rec.ID
	}
	return nil
}

// DeleteByProject removes every record of a project.
func (r *ProgressRepository) DeleteByProject(_ context.Context, cred auth.Credential, projectID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, projectID) {
		return nil
	}
	r.db.deleteProgressLocked(projectID)
	return nil
}
