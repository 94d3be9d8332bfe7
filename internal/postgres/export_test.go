package postgres

import "context"

// Truncate empties every table between suite runs.
func Truncate(ctx context.Context, db *DB) error {
	_, err := db.pool.Exec(ctx, `TRUNCATE notes, master_artifacts, module_progress, projects`)
	return err
}
