package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ProjectRepository implements project.Repository for SQLite
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, owner_id, title, description, created_at, updated_at`

func scanProject(s scanner) (*project.Project, error) {
	var (
		proj             project.Project
		desc             sql.NullString
		created, updated string
	)
	if err := s.Scan(&proj.ID, &proj.OwnerID, &proj.Title, &desc, &created, &updated); err != nil {
		return nil, err
	}
	proj.Description = stringPtr(desc)

	var err error
	if proj.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if proj.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &proj, nil
}

// Create creates a new project owned by cred
func (r *ProjectRepository) Create(ctx context.Context, cred auth.Credential, proj *project.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, title, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		proj.ID,
		cred.Subject,
		proj.Title,
		nullString(proj.Description),
		formatTime(proj.CreatedAt),
		formatTime(proj.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", mapError(err))
	}

	proj.OwnerID = cred.Subject
	return nil
}

// Get retrieves a project by ID
func (r *ProjectRepository) Get(ctx context.Context, cred auth.Credential, id string) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ? AND owner_id = ?`

	proj, err := scanProject(r.db.QueryRowContext(ctx, query, id, cred.Subject))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return proj, nil
}

// List returns the caller's projects, newest first
func (r *ProjectRepository) List(ctx context.Context, cred auth.Credential) ([]project.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE owner_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, cred.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]project.Project, 0)
	for rows.Next() {
		proj, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *proj)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}

	return projects, nil
}

// Update replaces title, description and updated_at
func (r *ProjectRepository) Update(ctx context.Context, cred auth.Credential, proj *project.Project) error {
	query := `
		UPDATE projects
		SET title = ?, description = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		proj.Title,
		nullString(proj.Description),
		formatTime(proj.UpdatedAt),
		proj.ID,
		cred.Subject,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireAffected(result)
}

// Delete removes the project; children go with it through ON DELETE CASCADE
func (r *ProjectRepository) Delete(ctx context.Context, cred auth.Credential, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND owner_id = ?`, id, cred.Subject)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
