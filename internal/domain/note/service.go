package note

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

// Service handles note operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new note service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// CreateRequest defines note creation inputs.
type CreateRequest struct {
	ProjectID string
	Content   *string
}

// Create stores a new note for a project.
func (s *Service) Create(ctx context.Context, cred auth.Credential, req CreateRequest) (*Note, error) {
	if strings.TrimSpace(req.ProjectID) == "" {
		return nil, validation.New("Invalid note data").Add("projectId", "Required")
	}

	now := s.now().UTC()
	n := &Note{
		ID:        uuid.NewString(),
		ProjectID: req.ProjectID,
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, cred, n); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation.New("Invalid note data").Add("projectId", "Project not found")
		}
		return nil, fmt.Errorf("creating note: %w", err)
	}
	return n, nil
}

// List returns notes for projectID, or all of the caller's notes when
// projectID is empty.
func (s *Service) List(ctx context.Context, cred auth.Credential, projectID string) ([]Note, error) {
	list, err := s.repo.List(ctx, cred, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	if list == nil {
		list = []Note{}
	}
	return list, nil
}

// Get fetches a note by ID.
func (s *Service) Get(ctx context.Context, cred auth.Credential, id string) (*Note, error) {
	n, err := s.repo.Get(ctx, cred, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("getting note: %w", err)
	}
	return n, nil
}

// Update replaces the content of a note.
func (s *Service) Update(ctx context.Context, cred auth.Credential, id, content string) (*Note, error) {
	n, err := s.Get(ctx, cred, id)
	if err != nil {
		return nil, err
	}
	n.Content = &content
	n.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, cred, n); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("updating note: %w", err)
	}
	return n, nil
}

// Delete removes a single note.
func (s *Service) Delete(ctx context.Context, cred auth.Credential, id string) error {
	if err := s.repo.Delete(ctx, cred, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("deleting note: %w", err)
	}
	return nil
}

// DeleteByProject removes every note of a project.
func (s *Service) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	if err := s.repo.DeleteByProject(ctx, cred, projectID); err != nil {
		return fmt.Errorf("deleting notes: %w", err)
	}
	return nil
}
