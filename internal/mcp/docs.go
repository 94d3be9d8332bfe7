package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/phasetrack/internal/catalog"
)

const serverInstructions = `phasetrack tracks projects through a fixed framework of modules and phases.

Core concepts:
- Framework: numbered modules, each with numbered phases. Read it with list_framework_modules or the phasetrack://framework resource.
- Project: a run through the framework. Creating one seeds a not_started record per phase.
- Phase record: saved content for one phase. Non-empty content marks the phase completed.
- Master artifact: the document a module produces.

Typical workflow:
1) list_projects, or create_project for a new idea.
2) get_phase to read the prompt template of the next phase.
3) save_phase with the result. Saving the same phase again overwrites it.
4) get_project_progress to see what is left.
5) export_project to hand the work over as JSON or Markdown.
`

const frameworkURI = "phasetrack://framework"

func moduleURI(n int) string {
	return fmt.Sprintf("%s/modules/%d", frameworkURI, n)
}

// registerFrameworkResources exposes the catalog as read-only JSON
// resources: one for the whole framework and one per module.
func registerFrameworkResources(server *sdkmcp.Server, cat *catalog.Catalog) {
	meta := cat.Meta()
	addJSONResource(server, &sdkmcp.Resource{
		URI:         frameworkURI,
		Name:        "framework",
		Title:       meta.Name,
		Description: meta.Description,
	}, func() any {
		return struct {
			Meta       catalog.Meta      `json:"meta"`
			Philosophy map[string]string `json:"philosophy,omitempty"`
			Modules    []catalog.Module  `json:"modules"`
		}{cat.Meta(), cat.Philosophy(), cat.Modules()}
	})

	for _, m := range cat.Modules() {
		m := m
		addJSONResource(server, &sdkmcp.Resource{
			URI:         moduleURI(m.Number),
			Name:        fmt.Sprintf("module_%d", m.Number),
			Title:       m.Title,
			Description: m.Objective,
		}, func() any { return m })
	}
}

func addJSONResource(server *sdkmcp.Server, res *sdkmcp.Resource, payload func() any) {
	res.MIMEType = "application/json"
	server.AddResource(res, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload()); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", res.URI, err)
		}
		uri := res.URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		return &sdkmcp.ReadResourceResult{
			Contents: []*sdkmcp.ResourceContents{{
				URI:      uri,
				MIMEType: "application/json",
				Text:     buf.String(),
			}},
		}, nil
	})
}
