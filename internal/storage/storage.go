// Package storage selects a persistence backend and exposes its
// repositories behind the domain interfaces.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpggio/phasetrack/internal/config"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/memstore"
	"github.com/rpggio/phasetrack/internal/postgres"
	"github.com/rpggio/phasetrack/internal/sqlite"
)

// Backend is the lifecycle surface shared by every driver.
type Backend interface {
	Ping(ctx context.Context) error
	Close() error
}

// Store bundles the repositories of one backend.
type Store struct {
	Driver    string
	Projects  project.Repository
	Progress  progress.Repository
	Artifacts artifact.Repository
	Notes     note.Repository

	backend Backend
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases backend resources.
func (s *Store) Close() error {
	return s.backend.Close()
}

// NewMemory returns a store backed by process memory.
func NewMemory() *Store {
	db := memstore.New()
	return &Store{
		Driver:    "memory",
		Projects:  memstore.NewProjectRepository(db),
		Progress:  memstore.NewProgressRepository(db),
		Artifacts: memstore.NewArtifactRepository(db),
		Notes:     memstore.NewNoteRepository(db),
		backend:   db,
	}
}

// NewSQLite wraps an open, migrated SQLite database.
func NewSQLite(db *sqlite.DB) *Store {
	return &Store{
		Driver:    "sqlite",
		Projects:  sqlite.NewProjectRepository(db),
		Progress:  sqlite.NewProgressRepository(db),
		Artifacts: sqlite.NewArtifactRepository(db),
		Notes:     sqlite.NewNoteRepository(db),
		backend:   db,
	}
}

// NewPostgres wraps a connected PostgreSQL pool.
func NewPostgres(db *postgres.DB) *Store {
	return &Store{
		Driver:    "postgres",
		Projects:  postgres.NewProjectRepository(db),
		Progress:  postgres.NewProgressRepository(db),
		Artifacts: postgres.NewArtifactRepository(db),
		Notes:     postgres.NewNoteRepository(db),
		backend:   db,
	}
}

// Open connects to the configured driver. When migrate is true pending
// migrations are applied before the store is returned.
func Open(ctx context.Context, cfg config.StoreConfig, migrate bool, logger *slog.Logger) (*Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return NewMemory(), nil

	case "sqlite":
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if migrate {
			applied, err := db.RunMigrations(ctx)
			if err != nil {
				db.Close()
				return nil, err
			}
			logApplied(logger, "sqlite", applied)
		}
		return NewSQLite(db), nil

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{
			MaxConns:           cfg.MaxConns,
			MinConns:           cfg.MinConns,
			SlowQueryThreshold: cfg.SlowQueryThreshold,
		}, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			applied, err := db.RunMigrations(ctx)
			if err != nil {
				db.Close()
				return nil, err
			}
			logApplied(logger, "postgres", applied)
		}
		return NewPostgres(db), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Migrate applies pending migrations for a SQL driver and returns the
// versions it applied. The memory driver has nothing to migrate.
func Migrate(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) ([]string, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "memory":
		return nil, nil
	case "sqlite":
		db, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.RunMigrations(ctx)
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{
			MaxConns: cfg.MaxConns,
			MinConns: cfg.MinConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.RunMigrations(ctx)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func logApplied(logger *slog.Logger, driver string, applied []string) {
	if logger == nil || len(applied) == 0 {
		return
	}
	logger.Info("migrations applied", "driver", driver, "versions", applied)
}
