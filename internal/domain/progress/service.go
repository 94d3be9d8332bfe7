package progress

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
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/validation"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/metrics"
	"github.com/rpggio/phasetrack/internal/repository"
)

// Service handles phase progress operations.
type Service struct {
	repo      Repository
	catalog   *catalog.Catalog
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new progress service.
func NewService(repo Repository, cat *catalog.Catalog, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		catalog:   cat,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// UpsertRequest describes a save of one phase.
//
// Status, when set, is used unless Content is non-empty. FallbackStatus is
// used only when neither Status nor an existing record decides.
type UpsertRequest struct {
	ProjectID      string
	ModuleNumber   int
	PhaseNumber    int
	Content        *string
	PromptCreated  *string
	Status         Status
	FallbackStatus Status
}

// ResolveStatus applies the status rule for a save.
func ResolveStatus(content *string, requested Status, existing *ModuleProgress, fallback Status) Status {
	if content != nil && strings.TrimSpace(*content) != "" {
		return StatusCompleted
	}
	if requested != "" {
		return requested
	}
	if existing != nil && existing.Status != "" {
		return existing.Status
	}
	if fallback != "" {
		return fallback
	}
	return StatusNotStarted
}

// Upsert saves the content of one phase, creating the record if needed.
func (s *Service) Upsert(ctx context.Context, cred auth.Credential, req UpsertRequest) (*ModuleProgress, error) {
	verr := validation.New("Missing required fields")
	if strings.TrimSpace(req.ProjectID) == "" {
		verr.Add("projectId", "Required")
	}
	if req.ModuleNumber == 0 {
		verr.Add("moduleNumber", "Required")
	}
	if req.PhaseNumber == 0 {
		verr.Add("phaseNumber", "Required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	for field, st := range map[string]Status{"status": req.Status, "fallbackStatus": req.FallbackStatus} {
		if st != "" && !st.Valid() {
			return nil, validation.New("Invalid progress data").Add(field, fmt.Sprintf("unknown status %q", st))
		}
	}

	phase, ok := s.catalog.Phase(req.ModuleNumber, req.PhaseNumber)
	if !ok {
		return nil, ErrInvalidPhase
	}

	existing, err := s.repo.Get(ctx, cred, req.ProjectID, req.ModuleNumber, req.PhaseNumber)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("loading module progress: %w", err)
		}
		existing = nil
	}

	content := req.Content
	if content != nil && *content == "" {
		content = nil
	}
	prompt := req.PromptCreated
	if prompt == nil && existing != nil {
		prompt = existing.PromptCreated
	}

	now := s.now().UTC()
	rec := &ModuleProgress{
		ID:            uuid.NewString(),
		ProjectID:     req.ProjectID,
		ModuleNumber:  req.ModuleNumber,
		ModuleTitle:   phase.ModuleTitle,
		PhaseNumber:   req.PhaseNumber,
		PhaseTitle:    phase.Name,
		Content:       content,
		PromptCreated: prompt,
		Status:        ResolveStatus(content, req.Status, existing, req.FallbackStatus),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.Upsert(ctx, cred, rec); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, validation.New("Invalid progress data").Add("projectId", "Project not found")
		}
		return nil, fmt.Errorf("saving module progress: %w", err)
	}

	metrics.RecordProgressSave(string(rec.Status))
	event := events.ProgressUpdated{
		ProjectID:    rec.ProjectID,
		OwnerID:      cred.Subject,
		ModuleNumber: rec.ModuleNumber,
		PhaseNumber:  rec.PhaseNumber,
		Status:       string(rec.Status),
		OccurredAt:   rec.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, events.RoutingKeyProgressUpdated, event); err != nil {
		metrics.RecordEventPublishFailure(events.RoutingKeyProgressUpdated)
		s.logger.Warn("publishing progress event failed", "project_id", rec.ProjectID, "error", err)
	}

	return rec, nil
}

// Seed creates one not_started record per catalog phase for a new project.
func (s *Service) Seed(ctx context.Context, cred auth.Credential, projectID string) error {
	now := s.now().UTC()
	phases := s.catalog.AllPhases()
	recs := make([]ModuleProgress, 0, len(phases))
	for _, p := range phases {
		recs = append(recs, ModuleProgress{
			ID:           uuid.NewString(),
			ProjectID:    projectID,
			ModuleNumber: p.ModuleNumber,
			ModuleTitle:  p.ModuleTitle,
			PhaseNumber:  p.PhaseNumber,
			PhaseTitle:   p.Name,
			Status:       StatusNotStarted,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := s.repo.Seed(ctx, cred, projectID, recs); err != nil {
		return fmt.Errorf("seeding module progress: %w", err)
	}
	s.logger.Debug("seeded phase records", "project_id", projectID, "count", len(recs))
	return nil
}

// List returns phase records for projectID, or all of the caller's records
// when projectID is empty.
func (s *Service) List(ctx context.Context, cred auth.Credential, projectID string) ([]ModuleProgress, error) {
	recs, err := s.repo.List(ctx, cred, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing module progress: %w", err)
	}
	if recs == nil {
		recs = []ModuleProgress{}
	}
	return recs, nil
}

// Get returns the record for a single phase.
func (s *Service) Get(ctx context.Context, cred auth.Credential, projectID string, moduleNumber, phaseNumber int) (*ModuleProgress, error) {
	rec, err := s.repo.Get(ctx, cred, projectID, moduleNumber, phaseNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("getting module progress: %w", err)
	}
	return rec, nil
}

// ProjectCompletion aggregates the records of one project.
func (s *Service) ProjectCompletion(ctx context.Context, cred auth.Credential, projectID string) (Completion, error) {
	recs, err := s.List(ctx, cred, projectID)
	if err != nil {
		return Completion{}, err
	}
	total := s.catalog.TotalPhases()
	modules := ModuleBreakdown(s.catalog, projectID, recs)
	completed := 0
	for _, m := range modules {
		completed += m.Completed
	}
	return Completion{
		ProjectID: projectID,
		Percent:   CompletionPercent(projectID, recs, total),
		Completed: completed,
		Total:     total,
		Modules:   modules,
	}, nil
}

// CompletionByProject returns the completion percent of every project the
// caller has records for.
func (s *Service) CompletionByProject(ctx context.Context, cred auth.Credential) (map[string]int, error) {
	recs, err := s.List(ctx, cred, "")
	if err != nil {
		return nil, err
	}
	byProject := make(map[string][]ModuleProgress)
	for _, r := range recs {
		byProject[r.ProjectID] = append(byProject[r.ProjectID], r)
	}
	total := s.catalog.TotalPhases()
	out := make(map[string]int, len(byProject))
	for id, rs := range byProject {
		out[id] = CompletionPercent(id, rs, total)
	}
	return out, nil
}

// DeleteByProject removes every record of a project.
func (s *Service) DeleteByProject(ctx context.Context, cred auth.Credential, projectID string) error {
	if err := s.repo.DeleteByProject(ctx, cred, projectID); err != nil {
		return fmt.Errorf("deleting module progress: %w", err)
	}
	return nil
}
