package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
)

type phaseKey struct {
	projectID    string
	moduleNumber int
	phaseNumber  int
}

// DB is a process-local store. All values are copied in and out so callers
// never share memory with the maps.
type DB struct {
	mu        sync.RWMutex
	projects  map[string]project.Project
	progress  map[string]progress.ModuleProgress
	byPhase   map[phaseKey]string
	artifacts map[string]artifact.MasterArtifact
	notes     map[string]note.Note
}

// New creates an empty in-memory store.
func New() *DB {
	return &DB{
		projects:  make(map[string]project.Project),
		progress:  make(map[string]progress.ModuleProgress),
		byPhase:   make(map[phaseKey]string),
		artifacts: make(map[string]artifact.MasterArtifact),
		notes:     make(map[string]note.Note),
	}
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }

// Close is a no-op.
func (db *DB) Close() error { return nil }

// visible reports whether the project exists and belongs to cred.
// Callers must hold db.mu.
func (db *DB) visible(cred auth.Credential, projectID string) bool {
	p, ok := db.projects[projectID]
	return ok && p.OwnerID == cred.Subject
}

func (db *DB) deleteProgressLocked(projectID string) {
	for id, rec := range db.progress {
		if rec.ProjectID == projectID {
			delete(db.progress, id)
			delete(db.byPhase, phaseKey{rec.ProjectID, rec.ModuleNumber, rec.PhaseNumber})
		}
	}
}

func (db *DB) deleteArtifactsLocked(projectID string) {
	for id, a := range db.artifacts {
		if a.ProjectID == projectID {
			delete(db.artifacts, id)
		}
	}
}

func (db *DB) deleteNotesLocked(projectID string) {
	for id, n := range db.notes {
		if n.ProjectID == projectID {
			delete(db.notes, id)
		}
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func sortNewestFirst[T any](items []T, created func(T) int64, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if ci != cj {
			return ci > cj
		}
		return id(items[i]) > id(items[j])
	})
}
