package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/repository"
)

// NoteRepository implements note.Repository for SQLite
type NoteRepository struct {
	db *DB
}

// NewNoteRepository creates a new NoteRepository
func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteColumns = `n.id, n.project_id, n.content, n.created_at, n.updated_at`

func scanNote(s scanner) (*note.Note, error) {
	var (
		n                note.Note
		content          sql.NullString
		created, updated string
	)
	err := s.Scan(&n.ID, &n.ProjectID, &content, &created, &updated)
	if err != nil {
		return nil, err
	}
	n.Content = stringPtr(content)
	if n.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NoteRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]note.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		JOIN projects p ON p.id = n.project_id
		WHERE p.owner_id = ? AND (? = '' OR n.project_id = ?)
		ORDER BY n.created_at DESC, n.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, cred.Subject, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	out := make([]note.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		out = append(out, *n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating note rows: %w", err)
	}
	return out, nil
}

func (r *NoteRepository) Get(ctx context.Context, cred auth.Credential, id string) (*note.Note, error) {
	query := `
		SELECT ` + noteColumns + `
		FROM notes n
		JOIN projects p ON p.id = n.project_id
		WHERE n.id = ? AND p.owner_id = ?
	`

	n, err := scanNote(r.db.QueryRowContext(ctx, query, id, cred.Subject))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

// Create inserts the note only when its project belongs to cred
func (r *NoteRepository) Create(ctx context.Context, cred auth.Credential, n *note.Note) error {
	query := `
		INSERT INTO notes (id, project_id, content, created_at, updated_at)
		SELECT ?, id, ?, ?, ?
		FROM projects
		WHERE id = ? AND owner_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		n.ID,
		nullString(n.Content),
		formatTime(n.CreatedAt),
		formatTime(n.UpdatedAt),
		n.ProjectID,
		cred.Subject,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", mapError(err))
	}
	return requireAffected(result)
}

func (r *NoteRepository) Update(ctx context.Context, cred auth.Credential, n *note.Note) error {
	query := `
		UPDATE notes
		SET content = ?, updated_at = ?
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner_id = ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullString(n.Content),
		formatTime(n.UpdatedAt),
		n.ID,
		cred.Subject,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	return requireAffected(result)
}

func (r *NoteRepository) Delete(ctx context.Context, cred auth.Credential, id string) error {
	query := `
		DELETE FROM notes
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner_id = ?)
	`

	result, err := r.db.ExecContext(ctx, query, id, cred.Subject)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return requireAffected(result)
}

func (r *NoteRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	query := `
		DELETE FROM notes
		WHERE project_id IN (SELECT id FROM projects WHERE id = ? AND owner_id = ?)
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, cred.Subject); err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	return nil
}
