package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/repository"
)

// ProgressRepository implements progress.Repository for SQLite
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new ProgressRepository
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

const progressColumns = `m.id, m.project_id, m.module_number, m.module_title, m.phase_number, m.phase_title,
	m.content, m.prompt_created, m.status, m.created_at, m.updated_at`

func scanProgress(s scanner) (*progress.ModuleProgress, error) {
	var (
		rec              progress.ModuleProgress
		content, prompt  sql.NullString
		status           string
		created, updated string
	)
	err := s.Scan(
		&rec.ID,
		&rec.ProjectID,
		&rec.ModuleNumber,
		&rec.ModuleTitle,
		&rec.PhaseNumber,
		&rec.PhaseTitle,
		&content,
		&prompt,
		&status,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}
	rec.Content = stringPtr(content)
	rec.PromptCreated = stringPtr(prompt)
	rec.Status = progress.Status(status)

	if rec.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns records for projectID, or for every caller project when
// projectID is empty
func (r *ProgressRepository) List(ctx context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM module_progress m
		JOIN projects p ON p.id = m.project_id
		WHERE p.owner_id = ? AND (? = '' OR m.project_id = ?)
		ORDER BY m.project_id, m.module_number, m.phase_number
	`

	rows, err := r.db.QueryContext(ctx, query, cred.Subject, projectID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list module progress: %w", err)
	}
	defer rows.Close()

	out := make([]progress.ModuleProgress, 0)
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan module progress: %w", err)
		}
		out = append(out, *rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating module progress rows: %w", err)
	}
	return out, nil
}

// Get retrieves the record at (projectID, moduleNumber, phaseNumber)
func (r *ProgressRepository) Get(ctx context.Context, cred auth.Credential, projectID string, moduleNumber, phaseNumber int) (*progress.ModuleProgress, error) {
	query := `
		SELECT ` + progressColumns + `
		FROM module_progress m
		JOIN projects p ON p.id = m.project_id
		WHERE p.owner_id = ? AND m.project_id = ? AND m.module_number = ? AND m.phase_number = ?
	`

	rec, err := scanProgress(r.db.QueryRowContext(ctx, query, cred.Subject, projectID, moduleNumber, phaseNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get module progress: %w", err)
	}
	return rec, nil
}

// Upsert inserts or updates the record by composite key and touches the
// parent project's updated_at in the same transaction
func (r *ProgressRepository) Upsert(ctx context.Context, cred auth.Credential, rec *progress.ModuleProgress) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE projects SET updated_at = ? WHERE id = ? AND owner_id = ?`,
		formatTime(rec.UpdatedAt), rec.ProjectID, cred.Subject)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	query := `
		INSERT INTO module_progress (
			id, project_id, module_number, module_title, phase_number, phase_title,
			content, prompt_created, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, module_number, phase_number) DO UPDATE SET
			module_title = excluded.module_title,
			phase_title = excluded.phase_title,
			content = excluded.content,
			prompt_created = excluded.prompt_created,
			status = excluded.status,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`

	var id, created string
	err = tx.QueryRowContext(ctx, query,
		rec.ID,
		rec.ProjectID,
		rec.ModuleNumber,
		rec.ModuleTitle,
		rec.PhaseNumber,
		rec.PhaseTitle,
		nullString(rec.Content),
		nullString(rec.PromptCreated),
		string(rec.Status),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	).Scan(&id, &created)
	if isForeignKeyViolation(err) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to upsert module progress: %w", err)
	}

	createdAt, err := parseTime(created)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	rec.ID = id
	rec.CreatedAt = createdAt
	return nil
}

// Seed inserts records whose composite key does not exist yet
func (r *ProgressRepository) Seed(ctx context.Context, cred auth.Credential, projectID string, recs []progress.ModuleProgress) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var owned int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM projects WHERE id = ? AND owner_id = ?`,
		projectID, cred.Subject).Scan(&owned)
	if err != nil {
		return fmt.Errorf("failed to check project: %w", err)
	}
	if owned == 0 {
		return repository.ErrNotFound
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO module_progress (
			id, project_id, module_number, module_title, phase_number, phase_title,
			content, prompt_created, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare seed: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		_, err := stmt.ExecContext(ctx,
			rec.ID,
			projectID,
			rec.ModuleNumber,
			rec.ModuleTitle,
			rec.PhaseNumber,
			rec.PhaseTitle,
			nullString(rec.Content),
			nullString(rec.PromptCreated),
			string(rec.Status),
			formatTime(rec.CreatedAt),
			formatTime(rec.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to seed module %d phase %d: %w", rec.ModuleNumber, rec.PhaseNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteByProject removes every record of a project
func (r *ProgressRepository) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	query := `
		DELETE FROM module_progress
		WHERE project_id IN (SELECT id FROM projects WHERE id = ? AND owner_id = ?)
	`
	if _, err := r.db.ExecContext(ctx, query, projectID, cred.Subject); err != nil {
		return fmt.Errorf("failed to delete module progress: %w", err)
	}
	return nil
}
