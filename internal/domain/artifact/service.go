package artifact

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
	"github.com/rpggio/phasetrack/internal/repository"
)

// Service handles master artifact operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new artifact service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CreateRequest defines artifact creation inputs.
type CreateRequest struct {
	ProjectID       string
	ArtifactType    string
	ArtifactContent string
}

// UpdateRequest carries the fields to change.
type UpdateRequest struct {
	ArtifactType    *string
	ArtifactContent *string
}

// Create validates and stores a new artifact.
func (s *Service) Create(ctx context.Context, cred auth.Credential, req CreateRequest) (*MasterArtifact, error) {
	verr := validation.New("Invalid artifact data")
	if strings.TrimSpace(req.ProjectID) == "" {
		verr.Add("projectId", "Required")
	}
	if strings.TrimSpace(req.ArtifactType) == "" {
		verr.Add("artifactType", "Required")
	}
	if strings.TrimSpace(req.ArtifactContent) == "" {
		verr.Add("artifactContent", "Required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := &MasterArtifact{
		ID:              uuid.NewString(),
		ProjectID:       req.ProjectID,
		ArtifactType:    strings.TrimSpace(req.ArtifactType),
		ArtifactContent: req.ArtifactContent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, cred, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation.New("Invalid artifact data").Add("projectId", "Project not found")
		}
		return nil, fmt.Errorf("creating master artifact: %w", err)
	}
	return a, nil
}

// List returns artifacts for projectID, or all of the caller's artifacts
// when projectID is empty.
func (s *Service) List(ctx context.Context, cred auth.Credential, projectID string) ([]MasterArtifact, error) {
	list, err := s.repo.List(ctx, cred, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing master artifacts: %w", err)
	}
	if list == nil {
		list = []MasterArtifact{}
	}
	return list, nil
}

// Get fetches an artifact by ID.
func (s *Service) Get(ctx context.Context, cred auth.Credential, id string) (*MasterArtifact, error) {
	a, err := s.repo.Get(ctx, cred, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("getting master artifact: %w", err)
	}
	return a, nil
}

// Update changes the type or content of an artifact.
func (s *Service) Update(ctx context.Context, cred auth.Credential, id string, req UpdateRequest) (*MasterArtifact, error) {
	verr := validation.New("Invalid artifact data")
	if req.ArtifactType != nil && strings.TrimSpace(*req.ArtifactType) == "" {
		verr.Add("artifactType", "Required")
	}
	if req.ArtifactContent != nil && strings.TrimSpace(*req.ArtifactContent) == "" {
		verr.Add("artifactContent", "Required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	a, err := s.Get(ctx, cred, id)
	if err != nil {
		return nil, err
	}
	if req.ArtifactType != nil {
		a.ArtifactType = strings.TrimSpace(*req.ArtifactType)
	}
	if req.ArtifactContent != nil {
		a.ArtifactContent = *req.ArtifactContent
	}
	a.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, cred, a); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("updating master artifact: %w", err)
	}
	return a, nil
}

// DeleteByProject removes every artifact of a project.
func (s *Service) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	if err := s.repo.DeleteByProject(ctx, cred, projectID); err != nil {
		return fmt.Errorf("deleting master artifacts: %w", err)
	}
	return nil
}
