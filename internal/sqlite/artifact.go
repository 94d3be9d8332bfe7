package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ArtifactRepository implements artifact.Repository for SQLite
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new ArtifactRepository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `a.id, a.project_id, a.artifact_type, a.artifact_content, a.created_at, a.updated_at`

func scanArtifact(s scanner) (*artifact.MasterArtifact, error) {
	var (
		a                artifact.MasterArtifact
		created, updated string
	)
	err := s.Scan(&a.ID, &a.ProjectID, &a.ArtifactType, &a.ArtifactContent, &created, &updated)
	if err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArtifactRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]artifact.MasterArtifact, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM master_artifacts a
		JOIN projects p ON p.id = a.project_id
		WHERE p.owner_id = ? AND (? = '' OR a.project_id = ?)
		ORDER BY a.created_at DESC, a.id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, cred.Subject, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list master artifacts: %w", err)
	}
	defer rows.Close()

	out := make([]artifact.MasterArtifact, 0)
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan master artifact: %w", err)
		}
		out = append(out, *a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating master artifact rows: %w", err)
	}
	return out, nil
}

func (r *ArtifactRepository) Get(ctx context.Context, cred auth.Credential, id string) (*artifact.MasterArtifact, error) {
	query := `
		SELECT ` + artifactColumns + `
		FROM master_artifacts a
		JOIN projects p ON p.id = a.project_id
		WHERE a.id = ? AND p.owner_id = ?
	`

	a, err := scanArtifact(r.db.QueryRowContext(ctx, query, id, cred.Subject))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get master artifact: %w", err)
	}
	return a, nil
}

// Create inserts the artifact only when its project belongs to cred
func (r *ArtifactRepository) Create(ctx context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	query := `
		INSERT INTO master_artifacts (id, project_id, artifact_type, artifact_content, created_at, updated_at)
		SELECT ?, id, ?, ?, ?, ?
		FROM projects
		WHERE id = ? AND owner_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.ArtifactType,
		a.ArtifactContent,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
		a.ProjectID,
		cred.Subject,
	)
	if err != nil {
		return fmt.Errorf("failed to create master artifact: %w", mapError(err))
	}
	return requireAffected(result)
}

func (r *ArtifactRepository) Update(ctx context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	query := `
		UPDATE master_artifacts
		SET artifact_type = ?, artifact_content = ?, updated_at = ?
		WHERE id = ? AND project_id IN (SELECT id FROM projects WHERE owner_id = ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		a.ArtifactType,
		a.ArtifactContent,
		formatTime(a.UpdatedAt),
		a.ID,
		cred.Subject,
	)
	if err != nil {
		return fmt.Errorf("failed to update master artifact: %w", err)
	}
	return requireAffected(result)
}

func (r *ArtifactRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	query := `
		DELETE FROM master_artifacts
		WHERE project_id IN (SELECT id FROM projects WHERE id = ? AND owner_id = ?)
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, cred.Subject); err != nil {
		return fmt.Errorf("failed to delete master artifacts: %w", err)
	}
	return nil
}
