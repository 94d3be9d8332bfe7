package memstore

import (
	"context"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/repository"
)

// NoteRepository implements note.Repository in memory.
type NoteRepository struct {
	db *DB
}

// NewNoteRepository creates a new NoteRepository
func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func cloneNote(n note.Note) note.Note {
	n.Content = cloneString(n.Content)
	return n
}

func (r *NoteRepository) List(_ context.Context, cred auth.Credential, projectID string) ([]note.Note, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]note.Note, 0)
	for _, n := range r.db.notes {
		if projectID != "" && n.ProjectID != projectID {
			continue
		}
		if r.db.visible(cred, n.ProjectID) {
			out = append(out, cloneNote(n))
		}
	}
	sortNewestFirst(out,
		func(n note.Note) int64 { return n.CreatedAt.UnixNano() },
		func(n note.Note) string { return n.ID })
	return out, nil
}

func (r *NoteRepository) Get(_ context.Context, cred auth.Credential, id string) (*note.Note, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	n, ok := r.db.notes[id]
	if !ok || !r.db.visible(cred, n.ProjectID) {
		return nil, repository.ErrNotFound
	}
	n = cloneNote(n)
	return &n, nil
}

func (r *NoteRepository) Create(_ context.Context, cred auth.Credential, n *note.Note) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if !r.db.visible(cred, n.ProjectID) {
		return repository.ErrNotFound
	}
	if _, exists := r.db.notes[n.ID]; exists {
		return repository.ErrConflict
	}
	r.db.notes[n.ID] = cloneNote(*n)
	return nil
}

func (r *NoteRepository) Update(_ context.Context, cred auth.Credential, n *note.Note) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, ok := r.db.notes[n.ID]
	if !ok || !r.db.visible(cred, stored.ProjectID) {
		return repository.ErrNotFound
	}
	stored.Content = cloneString(n.Content)
	stored.UpdatedAt = n.UpdatedAt
	r.db.notes[n.ID] = stored
	return nil
}

func (r *NoteRepository) Delete(_ context.Context, cred auth.Credential, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	n, ok := r.db.notes[id]
	if !ok || !r.db.visible(cred, n.ProjectID) {
		return repository.ErrNotFound
	}
	delete(r.db.notes, id)
	return nil
}

func (r *NoteRepository) DeleteByProject(_ context.Context, cred auth.Credential, projectID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.db.visible(cred, projectID) {
		r.db.deleteNotesLocked(projectID)
	}
	return nil
}
