package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
)

// ArtifactRepository implements artifact.Repository for PostgreSQL.
type ArtifactRepository struct {
	db *DB
}

func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

const artifactColumns = `a.id, a.project_id, a.artifact_type, a.artifact_content, a.created_at, a.updated_at`

func scanArtifact(row pgx.Row) (*artifact.MasterArtifact, error) {
	var a artifact.MasterArtifact
	if err := row.Scan(&a.ID, &a.ProjectID, &a.ArtifactType, &a.ArtifactContent, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *ArtifactRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]artifact.MasterArtifact, error) {
	out := make([]artifact.MasterArtifact, 0)
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+artifactColumns+`
			FROM master_artifacts a
			JOIN projects p ON p.id = a.project_id
			WHERE p.owner_id = $1 AND ($2 = '' OR a.project_id = $2)
			ORDER BY a.created_at DESC, a.id DESC`, cred.Subject, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanArtifact(rows)
			if err != nil {
				return err
			}
			out = append(out, *a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list master artifacts: %w", mapError(err))
	}
	return out, nil
}

func (r *ArtifactRepository) Get(ctx context.Context, cred auth.Credential, id string) (*artifact.MasterArtifact, error) {
	var a *artifact.MasterArtifact
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		var err error
		a, err = scanArtifact(tx.QueryRow(ctx, `
			SELECT `+artifactColumns+`
			FROM master_artifacts a
			JOIN projects p ON p.id = a.project_id
			WHERE a.id = $1 AND p.owner_id = $2`, id, cred.Subject))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get master artifact: %w", mapError(err))
	}
	return a, nil
}

// Create inserts the artifact only when its project belongs to cred.
func (r *ArtifactRepository) Create(ctx context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO master_artifacts (id, project_id, artifact_type, artifact_content, created_at, updated_at)
			SELECT $1, id, $2, $3, $4, $5 FROM projects WHERE id = $6 AND owner_id = $7`,
			a.ID, a.ArtifactType, a.ArtifactContent, a.CreatedAt, a.UpdatedAt, a.ProjectID, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to create master artifact: %w", mapError(err))
	}
	return nil
}

func (r *ArtifactRepository) Update(ctx context.Context, cred auth.Credential, a *artifact.MasterArtifact) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE master_artifacts
			SET artifact_type = $1, artifact_content = $2, updated_at = $3
			WHERE id = $4 AND project_id IN (SELECT id FROM projects WHERE owner_id = $5)`,
			a.ArtifactType, a.ArtifactContent, a.UpdatedAt, a.ID, cred.Subject)
		if err != nil {
			return err
		}
		return requireAffected(tag)
	})
	if err != nil {
		return fmt.Errorf("failed to update master artifact: %w", mapError(err))
	}
	return nil
}

func (r *ArtifactRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM master_artifacts
			WHERE project_id IN (SELECT id FROM projects WHERE id = $1 AND owner_id = $2)`,
			projectID, cred.Subject)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete master artifacts: %w", mapError(err))
	}
	return nil
}
