// Package export renders a project with its phase records and master
// artifacts as a downloadable document.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/domain/artifact"
	"github.com/rpggio/phasetrack/internal/domain/progress"
	"github.com/rpggio/phasetrack/internal/domain/project"
)

// Format selects the rendering of a Bundle.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts "json", "markdown" and "md". Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type of the rendered format.
func (f Format) ContentType() string {
	if f == FormatMarkdown {
		return "text/markdown; charset=utf-8"
	}
	return "application/json"
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return "json"
}

// Bundle is everything exported for one project.
type Bundle struct {
	Project         project.Project           `json:"project"`
	ModuleProgress  []progress.ModuleProgress `json:"moduleProgress"`
	MasterArtifacts []artifact.MasterArtifact `json:"masterArtifacts"`
	ExportedAt      time.Time                 `json:"exportedAt"`
}

type ProjectGetter interface {
	Get(ctx context.Context, cred auth.Credential, id string) (*project.Project, error)
}

type ProgressLister interface {
	List(ctx context.Context, cred auth.Credential, projectID string) ([]progress.ModuleProgress, error)
}

type ArtifactLister interface {
	List(ctx context.Context, cred auth.Credential, projectID string) ([]artifact.MasterArtifact, error)
}

// Service assembles bundles from the domain services.
type Service struct {
	projects  ProjectGetter
	progress  ProgressLister
	artifacts ArtifactLister
	catalog   *catalog.Catalog
	now       func() time.Time
}

func NewService(projects ProjectGetter, progress ProgressLister, artifacts ArtifactLister, cat *catalog.Catalog) *Service {
	return &Service{
		projects:  projects,
		progress:  progress,
		artifacts: artifacts,
		catalog:   cat,
		now:       time.Now,
	}
}

// Build loads a project and its children. A missing project surfaces the
// project service's not-found error.
func (s *Service) Build(ctx context.Context, cred auth.Credential, projectID string) (*Bundle, error) {
	proj, err := s.projects.Get(ctx, cred, projectID)
	if err != nil {
		return nil, err
	}
	recs, err := s.progress.List(ctx, cred, projectID)
	if err != nil {
		return nil, fmt.Errorf("list module progress: %w", err)
	}
	arts, err := s.artifacts.List(ctx, cred, projectID)
	if err != nil {
		return nil, fmt.Errorf("list master artifacts: %w", err)
	}
	return &Bundle{
		Project:         *proj,
		ModuleProgress:  recs,
		MasterArtifacts: arts,
		ExportedAt:      s.now().UTC(),
	}, nil
}

// Write renders b in format f.
func (s *Service) Write(w io.Writer, b *Bundle, f Format) error {
	if f == FormatMarkdown {
		return WriteMarkdown(w, b, s.catalog)
	}
	return WriteJSON(w, b)
}

// WriteJSON writes b as indented JSON.
func WriteJSON(w io.Writer, b *Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// WriteMarkdown writes a readable document: project header, one section per
// module with its phases, then master artifacts. Modules follow catalog
// order; records for modules missing from cat are appended by number.
func WriteMarkdown(w io.Writer, b *Bundle, cat *catalog.Catalog) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", b.Project.Title)
	if b.Project.Description != nil && *b.Project.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", *b.Project.Description)
	}
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "**Created:** %s\n", b.Project.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&sb, "**Last updated:** %s\n\n", b.Project.UpdatedAt.Format("2006-01-02"))

	byModule := make(map[int][]progress.ModuleProgress)
	for _, rec := range b.ModuleProgress {
		byModule[rec.ModuleNumber] = append(byModule[rec.ModuleNumber], rec)
	}

	for _, n := range moduleOrder(cat, byModule) {
		recs := byModule[n]
		if len(recs) == 0 {
			continue
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].PhaseNumber < recs[j].PhaseNumber })

		title := recs[0].ModuleTitle
		if cat != nil {
			if m, ok := cat.Module(n); ok {
				title = m.Title
			}
		}
		fmt.Fprintf(&sb, "## Module %d: %s\n\n", n, title)

		for _, rec := range recs {
			fmt.Fprintf(&sb, "### Phase %d: %s\n\n", rec.PhaseNumber, rec.PhaseTitle)
			if rec.Content != nil && *rec.Content != "" {
				fmt.Fprintf(&sb, "%s\n\n", *rec.Content)
			}
			if rec.PromptCreated != nil && *rec.PromptCreated != "" {
				fmt.Fprintf(&sb, "**Prompt:**\n```\n%s\n```\n\n", *rec.PromptCreated)
			}
			sb.WriteString("---\n\n")
		}
	}

	if len(b.MasterArtifacts) > 0 {
		sb.WriteString("## Master Artifacts\n\n")
		for _, a := range b.MasterArtifacts {
			fmt.Fprintf(&sb, "### %s\n\n%s\n\n---\n\n", a.ArtifactType, a.ArtifactContent)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func moduleOrder(cat *catalog.Catalog, byModule map[int][]progress.ModuleProgress) []int {
	seen := make(map[int]bool)
	var order []int
	if cat != nil {
		for _, m := range cat.Modules() {
			order = append(order, m.Number)
			seen[m.Number] = true
		}
	}
	var extra []int
	for n := range byModule {
		if !seen[n] {
			extra = append(extra, n)
		}
	}
	sort.Ints(extra)
	return append(order, extra...)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// FileName derives the download name from the project title.
func FileName(title string, f Format) string {
	name := whitespaceRun.ReplaceAllString(title, "-")
	if name == "" {
		name = "project"
	}
	return name + "." + f.Extension()
}
