package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	db *DB
}

func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `m.id, m.project_id, m.module_number, m.module_title, m.phase_number, m.phase_title,
	m.content, m.prompt_created, m.status, m.created_at, m.updated_at`

func scanProgress(row pgx.Row) (*progress.ModuleProgress, error) {
	var (
		rec    progress.ModuleProgress
		status string
	)
	err := row.Scan(
		&rec.ID,
		&rec.ProjectID,
		&rec.ModuleNumber,
		&rec.ModuleTitle,
		&rec.PhaseNumber,
		&rec.PhaseTitle,
		&rec.Content,
		&rec.PromptCreated,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = progress.Status(status)
	return &rec, nil
}

func (r *ProgressRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error) {
	out := make([]progress.ModuleProgress, 0)
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT `+progressColumns+`
			FROM module_progress m
			JOIN projects p ON p.id = m.project_id
			WHERE p.owner_id = $1 AND ($2 = '' OR m.project_id = $2)
			ORDER BY m.project_id, m.module_number, m.phase_number`, cred.Subject, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanProgress(rows)
			if err != nil {
				return err
			}
			out = append(out, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list module progress: %w", mapError(err))
	}
	return out, nil
}

func (r *ProgressRepository) Get(ctx context.Context, cred auth.Credential, projectID string, moduleNumber, phaseNumber int) (*progress.ModuleProgress, error) {
	var rec *progress.ModuleProgress
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		var err error
		rec, err = scanProgress(tx.QueryRow(ctx, `
			SELECT `+progressColumns+`
			FROM module_progress m
			JOIN projects p ON p.id = m.project_id
			WHERE p.owner_id = $1 AND m.project_id = $2 AND m.module_number = $3 AND m.phase_number = $4`,
			cred.Subject, projectID, moduleNumber, phaseNumber))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get module progress: %w", mapError(err))
	}
	return rec, nil
}

// Upsert writes the record by composite key and touches the project in one
// transaction.
func (r *ProgressRepository) Upsert(ctx context.Context, cred auth.Credential, rec *progress.ModuleProgress) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE projects SET updated_at = $1 WHERE id = $2 AND owner_id = $3`,
			rec.UpdatedAt, rec.ProjectID, cred.Subject)
		if err != nil {
			return err
		}
		if err := requireAffected(tag); err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			INSERT INTO module_progress (
				id, project_id, module_number, module_title, phase_number, phase_title,
				content, prompt_created, status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (project_id, module_number, phase_number) DO UPDATE SET
				module_title = EXCLUDED.module_title,
				phase_title = EXCLUDED.phase_title,
				content = EXCLUDED.content,
				prompt_created = EXCLUDED.prompt_created,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at
			RETURNING id, created_at`,
			rec.ID, rec.ProjectID, rec.ModuleNumber, rec.ModuleTitle, rec.PhaseNumber, rec.PhaseTitle,
			rec.Content, rec.PromptCreated, string(rec.Status), rec.CreatedAt, rec.UpdatedAt,
		).Scan(&rec.ID, &rec.CreatedAt)
	})
	err = mapError(err)
	if errors.Is(err, repository.ErrForeignKeyViolation) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert module progress: %w", err)
	}
	return nil
}

// Seed inserts records whose composite key does not exist yet.
func (r *ProgressRepository) Seed(ctx context.Context, cred auth.Credential, projectID string, recs []progress.ModuleProgress) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		var owned bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1 AND owner_id = $2)`,
			projectID, cred.Subject).Scan(&owned); err != nil {
			return err
		}
		if !owned {
			return repository.ErrNotFound
		}

		batch := &pgx.Batch{}
		for _, rec := range recs {
			batch.Queue(`
				INSERT INTO module_progress (
					id, project_id, module_number, module_title, phase_number, phase_title,
					content, prompt_created, status, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
				ON CONFLICT DO NOTHING`,
				rec.ID, projectID, rec.ModuleNumber, rec.ModuleTitle, rec.PhaseNumber, rec.PhaseTitle,
				rec.Content, rec.PromptCreated, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("failed to seed module progress: %w", mapError(err))
	}
	return nil
}

func (r *ProgressRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	err := r.db.withSubject(ctx, cred, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM module_progress
			WHERE project_id IN (SELECT id FROM projects WHERE id = $1 AND owner_id = $2)`,
			projectID, cred.Subject)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete module progress: %w", mapError(err))
	}
	return nil
}
