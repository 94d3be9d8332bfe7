package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/project"
)

// ProjectRepository implements project.Repository for PostgreSQL.
type ProjectRepository struct {
	db *DB
}

func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, owner_id, title, description, created_at, updated_at`

func scanProject(row pgx.Row) (*project.Project, error) {
	var p project.Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, cred auth.Credential, proj *project.Project) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (id, owner_id, title, description, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			proj.ID, cred.Subject, proj.Title, proj.Description, proj.CreatedAt, proj.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", mapError(err))
	}
	proj.OwnerID = cred.Subject
	return nil
}

func (r *ProjectRepository) Get(ctx context.Context, cred auth.Credential, id string) (*project.Project, error) {
	var proj *project.Project
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		var err error
		proj, err = scanProject(tx.QueryRow(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE id = $1 AND owner_id = $2`, id, cred.Subject))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", mapError(err))
	}
	return proj, nil
}

func (r *ProjectRepository) List(ctx context.Context, cred auth.Credential) ([]project.Project, error) {
	out := make([]project.Project, 0)
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+projectColumns+`
			FROM projects
			WHERE owner_id = $1
			ORDER BY created_at DESC, id DESC`, cred.Subject)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			out = append(out, *p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", mapError(err))
	}
	return out, nil
}

func (r *ProjectRepository) Update(ctx context.Context, cred auth.Credential, proj *project.Project) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE projects SET title = $1, description = $2, updated_at = $3
			WHERE id = $4 AND owner_id = $5`,
			proj.Title, proj.Description, proj.UpdatedAt, proj.ID, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to update project: %w", mapError(err))
	}
	return nil
}

// Delete removes the project; child rows cascade.
func (r *ProjectRepository) Delete(ctx context.Context, cred auth.Credential, id string) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1 AND owner_id = $2`, id, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", mapError(err))
	}
	return nil
}
