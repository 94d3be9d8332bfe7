package mcp

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/note"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
	"github.com/rpggio/phasetrack/internal/export"
)

// ProjectSummary is a project as listed by list_projects.
type ProjectSummary struct {
	ID                string `json:"id" jsonschema:"project identifier"`
	Title             string `json:"title" jsonschema:"project title"`
	Description       string `json:"description,omitempty" jsonschema:"project description"`
	CompletionPercent int    `json:"completion_percent" jsonschema:"completed phases as a percentage of the framework"`
	UpdatedAt         string `json:"updated_at" jsonschema:"last change, RFC 3339"`
}

// EmptyInput is the input of tools without arguments.
type EmptyInput struct{}

type ListProjectsResult struct {
	Projects []ProjectSummary `json:"projects" jsonschema:"the caller's projects, newest first"`
}

type CreateProjectInput struct {
	Title       string `json:"title" jsonschema:"project title, 1 to 100 characters"`
	Description string `json:"description,omitempty" jsonschema:"optional description, up to 500 characters"`
}

type ProjectIDInput struct {
	ProjectID string `json:"project_id" jsonschema:"project identifier"`
}

// PhaseRecord is one saved phase of a project.
type PhaseRecord struct {
	ModuleNumber  int    `json:"module_number" jsonschema:"module number"`
	ModuleTitle   string `json:"module_title" jsonschema:"module title"`
	PhaseNumber   int    `json:"phase_number" jsonschema:"phase number within the module"`
	PhaseTitle    string `json:"phase_title" jsonschema:"phase title"`
	Status        string `json:"status" jsonschema:"not_started, in_progress or completed"`
	Content       string `json:"content,omitempty" jsonschema:"saved content"`
	PromptCreated string `json:"prompt_created,omitempty" jsonschema:"prompt generated for the phase"`
	UpdatedAt     string `json:"updated_at" jsonschema:"last save, RFC 3339"`
}

type ListPhaseRecordsResult struct {
	Records []PhaseRecord `json:"records" jsonschema:"phase records of the project"`
}

type ModuleCompletion struct {
	ModuleNumber int    `json:"module_number" jsonschema:"module number"`
	ModuleTitle  string `json:"module_title" jsonschema:"module title"`
	Completed    int    `json:"completed" jsonschema:"completed phases"`
	Total        int    `json:"total" jsonschema:"phases in the module"`
	Percent      int    `json:"percent" jsonschema:"module completion percent"`
}

type ProjectProgressResult struct {
	ProjectID string             `json:"project_id" jsonschema:"project identifier"`
	Percent   int                `json:"percent" jsonschema:"overall completion percent"`
	Completed int                `json:"completed" jsonschema:"completed phases"`
	Total     int                `json:"total" jsonschema:"phases in the framework"`
	Modules   []ModuleCompletion `json:"modules" jsonschema:"per-module breakdown"`
}

type SavePhaseInput struct {
	ProjectID     string `json:"project_id" jsonschema:"project identifier"`
	ModuleNumber  int    `json:"module_number" jsonschema:"module number"`
	PhaseNumber   int    `json:"phase_number" jsonschema:"phase number within the module"`
	Content       string `json:"content,omitempty" jsonschema:"phase content; non-empty content completes the phase"`
	PromptCreated string `json:"prompt_created,omitempty" jsonschema:"prompt generated for the phase; omitted keeps the saved prompt"`
	Status        string `json:"status,omitempty" jsonschema:"status used when content is empty"`
}

type FrameworkModule struct {
	Number             int              `json:"number" jsonschema:"module number"`
	Title              string           `json:"title" jsonschema:"module title"`
	Objective          string           `json:"objective,omitempty" jsonschema:"what the module achieves"`
	OutputArtifactName string           `json:"output_artifact_name,omitempty" jsonschema:"master artifact produced by the module"`
	Phases             []FrameworkPhase `json:"phases" jsonschema:"phases of the module"`
}

type FrameworkPhase struct {
	Number int    `json:"number" jsonschema:"phase number"`
	Name   string `json:"name" jsonschema:"phase name"`
}

type ListFrameworkModulesResult struct {
	Framework string            `json:"framework" jsonschema:"framework name"`
	Version   string            `json:"version" jsonschema:"framework version"`
	Modules   []FrameworkModule `json:"modules" jsonschema:"modules in order"`
}

type GetPhaseInput struct {
	ModuleNumber int `json:"module_number" jsonschema:"module number"`
	PhaseNumber  int `json:"phase_number" jsonschema:"phase number within the module"`
}

type GetPhaseResult struct {
	ModuleNumber   int      `json:"module_number" jsonschema:"module number"`
	ModuleTitle    string   `json:"module_title" jsonschema:"module title"`
	PhaseNumber    int      `json:"phase_number" jsonschema:"phase number"`
	Name           string   `json:"name" jsonschema:"phase name"`
	Description    string   `json:"description" jsonschema:"what the phase asks for"`
	PromptTemplate string   `json:"prompt_template" jsonschema:"template for the phase prompt"`
	FocusAreas     []string `json:"focus_areas,omitempty" jsonschema:"areas to cover"`
}

type AddNoteInput struct {
	ProjectID string `json:"project_id" jsonschema:"project identifier"`
	Content   string `json:"content" jsonschema:"note text"`
}

type AddNoteResult struct {
	ID        string `json:"id" jsonschema:"note identifier"`
	CreatedAt string `json:"created_at" jsonschema:"creation time, RFC 3339"`
}

type ExportProjectInput struct {
	ProjectID string `json:"project_id" jsonschema:"project identifier"`
	Format    string `json:"format,omitempty" jsonschema:"json or markdown, default json"`
}

type ExportProjectResult struct {
	FileName    string `json:"file_name" jsonschema:"suggested file name"`
	ContentType string `json:"content_type" jsonschema:"MIME type of the document"`
	Content     string `json:"content" jsonschema:"rendered document"`
}

type tools struct {
	services Services
	logger   *slog.Logger
}

func registerTools(server *sdkmcp.Server, services Services, logger *slog.Logger) {
	t := &tools{services: services, logger: logger}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_projects",
		Description: "List the caller's projects with their completion percent",
	}, t.listProjects)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "create_project",
		Description: "Create a project and seed one record per framework phase",
	}, t.createProject)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_project_progress",
		Description: "Get overall and per-module completion of a project",
	}, t.projectProgress)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_phase_records",
		Description: "List the saved phase records of a project",
	}, t.listPhaseRecords)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "save_phase",
		Description: "Save content for one phase of a project",
	}, t.savePhase)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_framework_modules",
		Description: "List the framework modules and their phases",
	}, t.listFrameworkModules)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_phase",
		Description: "Get the description and prompt template of one phase",
	}, t.getPhase)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "add_note",
		Description: "Attach a free-text note to a project",
	}, t.addNote)
	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "export_project",
		Description: "Render a project with its phases and master artifacts as JSON or Markdown",
	}, t.exportProject)
}

func (t *tools) fail(ctx context.Context, tool string, err error) error {
	mapped := toolError(err)
	if MapError(err) == nil {
		t.logger.ErrorContext(ctx, "mcp tool failed", "tool", tool, "error", err)
	}
	return mapped
}

func (t *tools) listProjects(ctx context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ListProjectsResult, error) {
	summaries, err := t.services.Projects.Summaries(ctx, credential(ctx))
	if err != nil {
		return nil, ListProjectsResult{}, t.fail(ctx, "list_projects", err)
	}
	out := ListProjectsResult{Projects: make([]ProjectSummary, 0, len(summaries))}
	for _, s := range summaries {
		out.Projects = append(out.Projects, ProjectSummary{
			ID:                s.ID,
			Title:             s.Title,
			Description:       deref(s.Description),
			CompletionPercent: s.CompletionPercent,
			UpdatedAt:         formatTime(s.UpdatedAt),
		})
	}
	return nil, out, nil
}

func (t *tools) createProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in CreateProjectInput) (*sdkmcp.CallToolResult, ProjectSummary, error) {
	req := project.CreateRequest{Title: in.Title}
	if in.Description != "" {
		req.Description = &in.Description
	}
	proj, err := t.services.Projects.Create(ctx, credential(ctx), req)
	if err != nil {
		return nil, ProjectSummary{}, t.fail(ctx, "create_project", err)
	}
	return nil, ProjectSummary{
		ID:          proj.ID,
		Title:       proj.Title,
		Description: deref(proj.Description),
		UpdatedAt:   formatTime(proj.UpdatedAt),
	}, nil
}

func (t *tools) projectProgress(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectIDInput) (*sdkmcp.CallToolResult, ProjectProgressResult, error) {
	cred := credential(ctx)
	if _, err := t.services.Projects.Get(ctx, cred, in.ProjectID); err != nil {
		return nil, ProjectProgressResult{}, t.fail(ctx, "get_project_progress", err)
	}
	c, err := t.services.Progress.ProjectCompletion(ctx, cred, in.ProjectID)
	if err != nil {
		return nil, ProjectProgressResult{}, t.fail(ctx, "get_project_progress", err)
	}
	out := ProjectProgressResult{
		ProjectID: c.ProjectID,
		Percent:   c.Percent,
		Completed: c.Completed,
		Total:     c.Total,
		Modules:   make([]ModuleCompletion, 0, len(c.Modules)),
	}
	for _, m := range c.Modules {
		out.Modules = append(out.Modules, ModuleCompletion(m))
	}
	return nil, out, nil
}

func (t *tools) listPhaseRecords(ctx context.Context, _ *sdkmcp.CallToolRequest, in ProjectIDInput) (*sdkmcp.CallToolResult, ListPhaseRecordsResult, error) {
	cred := credential(ctx)
	if _, err := t.services.Projects.Get(ctx, cred, in.ProjectID); err != nil {
		return nil, ListPhaseRecordsResult{}, t.fail(ctx, "list_phase_records", err)
	}
	recs, err := t.services.Progress.List(ctx, cred, in.ProjectID)
	if err != nil {
		return nil, ListPhaseRecordsResult{}, t.fail(ctx, "list_phase_records", err)
	}
	out := ListPhaseRecordsResult{Records: make([]PhaseRecord, 0, len(recs))}
	for _, r := range recs {
		out.Records = append(out.Records, phaseRecord(r))
	}
	return nil, out, nil
}

func (t *tools) savePhase(ctx context.Context, _ *sdkmcp.CallToolRequest, in SavePhaseInput) (*sdkmcp.CallToolResult, PhaseRecord, error) {
	req := progress.UpsertRequest{
		ProjectID:      in.ProjectID,
		ModuleNumber:   in.ModuleNumber,
		PhaseNumber:    in.PhaseNumber,
		Content:        &in.Content,
		Status:         progress.Status(in.Status),
		FallbackStatus: progress.StatusInProgress,
	}
	if in.PromptCreated != "" {
		req.PromptCreated = &in.PromptCreated
	}
	rec, err := t.services.Progress.Upsert(ctx, credential(ctx), req)
	if err != nil {
		return nil, PhaseRecord{}, t.fail(ctx, "save_phase", err)
	}
	return nil, phaseRecord(*rec), nil
}

func (t *tools) listFrameworkModules(_ context.Context, _ *sdkmcp.CallToolRequest, _ EmptyInput) (*sdkmcp.CallToolResult, ListFrameworkModulesResult, error) {
	cat := t.services.Catalog
	meta := cat.Meta()
	out := ListFrameworkModulesResult{Framework: meta.Name, Version: meta.Version}
	for _, m := range cat.Modules() {
		fm := FrameworkModule{
			Number:             m.Number,
			Title:              m.Title,
			Objective:          m.Objective,
			OutputArtifactName: m.OutputArtifactName,
		}
		for _, p := range m.Phases {
			fm.Phases = append(fm.Phases, FrameworkPhase{Number: p.PhaseNumber, Name: p.Name})
		}
		out.Modules = append(out.Modules, fm)
	}
	return nil, out, nil
}

func (t *tools) getPhase(_ context.Context, _ *sdkmcp.CallToolRequest, in GetPhaseInput) (*sdkmcp.CallToolResult, GetPhaseResult, error) {
	p, ok := t.services.Catalog.Phase(in.ModuleNumber, in.PhaseNumber)
	if !ok {
		return nil, GetPhaseResult{}, toolError(progress.ErrInvalidPhase)
	}
	return nil, getPhaseResult(p), nil
}

func (t *tools) addNote(ctx context.Context, _ *sdkmcp.CallToolRequest, in AddNoteInput) (*sdkmcp.CallToolResult, AddNoteResult, error) {
	n, err := t.services.Notes.Create(ctx, credential(ctx), note.CreateRequest{
		ProjectID: in.ProjectID,
		Content:   &in.Content,
	})
	if err != nil {
		return nil, AddNoteResult{}, t.fail(ctx, "add_note", err)
	}
	return nil, AddNoteResult{ID: n.ID, CreatedAt: formatTime(n.CreatedAt)}, nil
}

func (t *tools) exportProject(ctx context.Context, _ *sdkmcp.CallToolRequest, in ExportProjectInput) (*sdkmcp.CallToolResult, ExportProjectResult, error) {
	format, err := export.ParseFormat(in.Format)
	if err != nil {
		return nil, ExportProjectResult{}, &APIError{Code: "INVALID_INPUT", Message: err.Error(), RecoveryHint: "Use json or markdown"}
	}
	bundle, err := t.services.Exporter.Build(ctx, credential(ctx), in.ProjectID)
	if err != nil {
		return nil, ExportProjectResult{}, t.fail(ctx, "export_project", err)
	}
	var buf bytes.Buffer
	if err := t.services.Exporter.Write(&buf, bundle, format); err != nil {
		return nil, ExportProjectResult{}, t.fail(ctx, "export_project", err)
	}
	return nil, ExportProjectResult{
		FileName:    export.FileName(bundle.Project.Title, format),
		ContentType: format.ContentType(),
		Content:     buf.String(),
	}, nil
}

func phaseRecord(r progress.ModuleProgress) PhaseRecord {
	return PhaseRecord{
		ModuleNumber:  r.ModuleNumber,
		ModuleTitle:   r.ModuleTitle,
		PhaseNumber:   r.PhaseNumber,
		PhaseTitle:    r.PhaseTitle,
		Status:        string(r.Status),
		Content:       deref(r.Content),
		PromptCreated: deref(r.PromptCreated),
		UpdatedAt:     formatTime(r.UpdatedAt),
	}
}

func getPhaseResult(p catalog.Phase) GetPhaseResult {
	return GetPhaseResult{
		ModuleNumber:   p.ModuleNumber,
		ModuleTitle:    p.ModuleTitle,
		PhaseNumber:    p.PhaseNumber,
		Name:           p.Name,
		Description:    p.Description,
		PromptTemplate: p.PromptTemplate,
		FocusAreas:     p.FocusAreas,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
