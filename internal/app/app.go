// Package app assembles the domain services on top of a store.
package app

import (
	"log/slog"

	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/export"
	"github.com/rpggio/phasetrack/internal/storage"
	"github.com/rpggio/phasetrack/internal/transport"
)

// Services holds one instance of every domain service.
type Services struct {
	Catalog   *catalog.Catalog
	Projects  *project.Service
	Progress  *progress.Service
	Artifacts *artifact.Service
	Notes     *note.Service
	Exporter  *export.Service
}

// NewServices wires the services over store. Project deletion empties
// phase records, artifacts and notes before removing the project row.
func NewServices(store *storage.Store, cat *catalog.Catalog, publisher events.Publisher, logger *slog.Logger) *Services {
	if cat == nil {
		cat = catalog.Default()
	}
	progressSvc := progress.NewService(store.Progress, cat, publisher, logger)
	artifactSvc := artifact.NewService(store.Artifacts, logger)
	noteSvc := note.NewService(store.Notes, logger)
	projectSvc := project.NewService(store.Projects, progressSvc,
		[]project.ChildRemover{progressSvc, artifactSvc, noteSvc}, publisher, logger)

	return &Services{
		Catalog:   cat,
		Projects:  projectSvc,
		Progress:  progressSvc,
		Artifacts: artifactSvc,
		Notes:     noteSvc,
		Exporter:  export.NewService(projectSvc, progressSvc, artifactSvc, cat),
	}
}

// Transport adapts the services to the HTTP layer.
func (s *Services) Transport() transport.Services {
	return transport.Services{
		Projects:  s.Projects,
		Progress:  s.Progress,
		Artifacts: s.Artifacts,
		Notes:     s.Notes,
		Exporter:  s.Exporter,
		Catalog:   s.Catalog,
	}
}
