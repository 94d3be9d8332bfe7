package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/validation"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/metrics"
	"github.com/rpggio/phasetrack/internal/repository"
)

// Service handles project operations.
type Service struct {
	repo      Repository
	progress  ProgressTracker
	children  []ChildRemover
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new project service. children are emptied before
// the project row itself is removed.
func NewService(repo Repository, progress ProgressTracker, children []ChildRemover, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		progress:  progress,
		children:  children,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateRequest defines project creation inputs.
type CreateRequest struct {
	Title       string
	Description *string
}

// UpdateRequest carries the fields to change; nil fields are left as is.
type UpdateRequest struct {
	Title       *string
	Description *string
}

// Create validates, persists and seeds a new project. Seeding is best
// effort: a failure is logged and the created project is still returned.
func (s *Service) Create(ctx context.Context, cred auth.Credential, req CreateRequest) (*Project, error) {
	verr := validation.New("Invalid project data")
	ValidateTitle(verr, req.Title)
	ValidateDescription(verr, req.Description)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := cred.Require(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	proj := &Project{
		ID:          uuid.NewString(),
		OwnerID:     cred.Subject,
		Title:       strings.TrimSpace(req.Title),
		Description: normalizeDescription(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, cred, proj); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	if s.progress != nil {
		if err := s.progress.Seed(ctx, cred, proj.ID); err != nil {
			metrics.ProjectSeedFailures.Inc()
			s.logger.Error("seeding phase records failed", "project_id", proj.ID, "error", err)
		}
	}

	s.publish(ctx, events.RoutingKeyProjectCreated, events.ProjectChanged{
		ProjectID:  proj.ID,
		OwnerID:    proj.OwnerID,
		Title:      proj.Title,
		OccurredAt: now,
	})

	return proj, nil
}

// Get fetches a project by ID.
func (s *Service) Get(ctx context.Context, cred auth.Credential, id string) (*Project, error) {
	proj, err := s.repo.Get(ctx, cred, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

// List returns the caller's projects, newest first.
func (s *Service) List(ctx context.Context, cred auth.Credential) ([]Project, error) {
	projects, err := s.repo.List(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	if projects == nil {
		projects = []Project{}
	}
	return projects, nil
}

// Summaries returns the caller's projects with their completion percent.
func (s *Service) Summaries(ctx context.Context, cred auth.Credential) ([]Summary, error) {
	projects, err := s.List(ctx, cred)
	if err != nil {
		return nil, err
	}

	var percents map[string]int
	if s.progress != nil {
		percents, err = s.progress.CompletionByProject(ctx, cred)
		if err != nil {
			return nil, fmt.Errorf("aggregating progress: %w", err)
		}
	}

	out := make([]Summary, len(projects))
	for i, p := range projects {
		out[i] = Summary{Project: p, CompletionPercent: percents[p.ID]}
	}
	return out, nil
}

// Update merges the non-nil fields of req into the project.
func (s *Service) Update(ctx context.Context, cred auth.Credential, id string, req UpdateRequest) (*Project, error) {
	verr := validation.New("Invalid project data")
	if req.Title != nil {
		ValidateTitle(verr, *req.Title)
	}
	ValidateDescription(verr, req.Description)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	proj, err := s.Get(ctx, cred, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		proj.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		proj.Description = normalizeDescription(req.Description)
	}
	proj.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, cred, proj); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("updating project: %w", err)
	}
	return proj, nil
}

// Delete removes a project and everything that belongs to it.
func (s *Service) Delete(ctx context.Context, cred auth.Credential, id string) error {
	if _, err := s.Get(ctx, cred, id); err != nil {
		return err
	}

	for _, child := range s.children {
		if err := child.DeleteByProject(ctx, cred, id); err != nil {
			return fmt.Errorf("deleting project children: %w", err)
		}
	}

	if err := s.repo.Delete(ctx, cred, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("deleting project: %w", err)
	}

	s.publish(ctx, events.RoutingKeyProjectDeleted, events.ProjectChanged{
		ProjectID:  id,
		OwnerID:    cred.Subject,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		metrics.RecordEventPublishFailure(routingKey)
		s.logger.Warn("publishing event failed", "routing_key", routingKey, "error", err)
	}
}
