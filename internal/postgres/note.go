package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/note"
)

// NoteRepository implements note.Repository for PostgreSQL.
type NoteRepository struct {
	db *DB
}

func NewNoteRepository(db *DB) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteColumns = `n.id, n.project_id, n.content, n.created_at, n.updated_at`

func scanNote(row pgx.Row) (*note.Note, error) {
	var n note.Note
	if err := row.Scan(&n.ID, &n.ProjectID, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NoteRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]note.Note, error) {
	out := make([]note.Note, 0)
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+noteColumns+`
			FROM notes n
			JOIN projects p ON p.id = n.project_id
			WHERE p.owner_id = $1 AND ($2 = '' OR n.project_id = $2)
			ORDER BY n.created_at DESC, n.id DESC`, cred.Subject, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			n, err := scanNote(rows)
			if err != nil {
				return err
			}
			out = append(out, *n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", mapError(err))
	}
	return out, nil
}

func (r *NoteRepository) Get(ctx context.Context, cred auth.Credential, id string) (*note.Note, error) {
	var n *note.Note
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		var err error
		n, err = scanNote(tx.QueryRow(ctx, `
			SELECT `+noteColumns+`
			FROM notes n
			JOIN projects p ON p.id = n.project_id
			WHERE n.id = $1 AND p.owner_id = $2`, id, cred.Subject))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", mapError(err))
	}
	return n, nil
}

func (r *NoteRepository) Create(ctx context.Context, cred auth.Credential, n *note.Note) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO notes (id, project_id, content, created_at, updated_at)
			SELECT $1, id, $2, $3, $4 FROM projects WHERE id = $5 AND owner_id = $6`,
			n.ID, n.Content, n.CreatedAt, n.UpdatedAt, n.ProjectID, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to create note: %w", mapError(err))
	}
	return nil
}

func (r *NoteRepository) Update(ctx context.Context, cred auth.Credential, n *note.Note) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE notes SET content = $1, updated_at = $2
			WHERE id = $3 AND project_id IN (SELECT id FROM projects WHERE owner_id = $4)`,
			n.Content, n.UpdatedAt, n.ID, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to update note: %w", mapError(err))
	}
	return nil
}

func (r *NoteRepository) Delete(ctx context.Context, cred auth.Credential, id string) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM notes
			WHERE id = $1 AND project_id IN (SELECT id FROM projects WHERE owner_id = $2)`,
			id, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", mapError(err))
	}
	return nil
}

func (r *NoteRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM notes
			WHERE project_id IN (SELECT id FROM projects WHERE id = $1 AND owner_id = $2)`,
			projectID, cred.Subject)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete notes: %w", mapError(err))
	}
	return nil
}
