package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed framework.json
var frameworkJSON []byte

// ErrInvalidCatalog indicates a framework document that cannot be used.
var ErrInvalidCatalog = errors.New("invalid framework catalog")

// Meta describes the framework as a whole.
type Meta struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Methodology  string `json:"methodology,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	TotalModules int    `json:"totalModules"`
	Description  string `json:"description,omitempty"`
}

// Step is one instruction inside a multi-step phase.
type Step struct {
	Step        int    `json:"step"`
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
	Constraint  string `json:"constraint,omitempty"`
	Output      string `json:"output,omitempty"`
}

// OutputComponent names one part of a phase deliverable.
type OutputComponent struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Phase is a single checklist item within a module.
type Phase struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	PromptTemplate   string            `json:"promptTemplate"`
	Steps            []Step            `json:"steps,omitempty"`
	FocusAreas       []string          `json:"focusAreas,omitempty"`
	OutputComponents []OutputComponent `json:"outputComponents,omitempty"`
	Methodology      string            `json:"methodology,omitempty"`
	AIRole           string            `json:"aiRole,omitempty"`
	Technique        string            `json:"technique,omitempty"`
	ModuleNumber     int               `json:"moduleNumber"`
	PhaseNumber      int               `json:"phaseNumber"`
	ModuleTitle      string            `json:"moduleTitle"`
}

// Module is a numbered group of phases producing one master artifact.
type Module struct {
	Number             int     `json:"number"`
	Key                string  `json:"key"`
	Title              string  `json:"title"`
	Focus              string  `json:"focus,omitempty"`
	Objective          string  `json:"objective,omitempty"`
	OutputArtifactName string  `json:"outputArtifactName,omitempty"`
	Description        string  `json:"description,omitempty"`
	Phases             []Phase `json:"phases"`
}

// Catalog is the read-only framework definition.
type Catalog struct {
	meta       Meta
	philosophy map[string]string
	modules    []Module
	total      int
}

type document struct {
	Meta       metaDoc              `json:"framework_meta" yaml:"framework_meta"`
	Philosophy map[string]string    `json:"base_philosophy" yaml:"base_philosophy"`
	Modules    map[string]moduleDoc `json:"modules" yaml:"modules"`
}

type metaDoc struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version" yaml:"version"`
	Methodology  string `json:"methodology" yaml:"methodology"`
	CreatedAt    string `json:"created_at" yaml:"created_at"`
	TotalModules int    `json:"total_modules" yaml:"total_modules"`
	Description  string `json:"description" yaml:"description"`
}

type moduleDoc struct {
	Title          string     `json:"title" yaml:"title"`
	Focus          string     `json:"focus" yaml:"focus"`
	Objective      string     `json:"objective" yaml:"objective"`
	OutputArtifact string     `json:"output_artifact" yaml:"output_artifact"`
	Description    string     `json:"description" yaml:"description"`
	Phases         []phaseDoc `json:"phases" yaml:"phases"`
}

type phaseDoc struct {
	ID               string            `json:"id" yaml:"id"`
	Name             string            `json:"name" yaml:"name"`
	Description      string            `json:"description" yaml:"description"`
	PromptTemplate   string            `json:"prompt_template" yaml:"prompt_template"`
	Steps            []stepDoc         `json:"steps" yaml:"steps"`
	FocusAreas       []string          `json:"focus_areas" yaml:"focus_areas"`
	OutputComponents []OutputComponent `json:"output_components" yaml:"output_components"`
	Methodology      string            `json:"methodology" yaml:"methodology"`
	AIRole           string            `json:"ai_role" yaml:"ai_role"`
	Technique        string            `json:"technique" yaml:"technique"`
}

type stepDoc struct {
	Step        int    `json:"step" yaml:"step"`
	Name        string `json:"name" yaml:"name"`
	Instruction string `json:"instruction" yaml:"instruction"`
	Constraint  string `json:"constraint" yaml:"constraint"`
	Output      string `json:"output" yaml:"output"`
}

var defaultCatalog = sync.OnceValue(func() *Catalog {
	c, err := Parse(frameworkJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded framework catalog: %v", err))
	}
	return c
})

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	return defaultCatalog()
}

// Parse builds a catalog from a JSON framework document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return build(doc)
}

// ParseYAML builds a catalog from a YAML framework document.
func ParseYAML(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return build(doc)
}

// LoadFile reads a framework document from disk, choosing the decoder by extension.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Parse(data)
	}
}

func build(doc document) (*Catalog, error) {
	if len(doc.Modules) == 0 {
		return nil, fmt.Errorf("%w: no modules", ErrInvalidCatalog)
	}

	keys := make([]string, 0, len(doc.Modules))
	for key := range doc.Modules {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return moduleKeyLess(keys[i], keys[j]) })

	c := &Catalog{
		meta: Meta{
			Name:         doc.Meta.Name,
			Version:      doc.Meta.Version,
			Methodology:  doc.Meta.Methodology,
			CreatedAt:    doc.Meta.CreatedAt,
			TotalModules: len(keys),
			Description:  doc.Meta.Description,
		},
		philosophy: doc.Philosophy,
		modules:    make([]Module, 0, len(keys)),
	}

	for i, key := range keys {
		md := doc.Modules[key]
		if strings.TrimSpace(md.Title) == "" {
			return nil, fmt.Errorf("%w: module %s has no title", ErrInvalidCatalog, key)
		}
		mod := Module{
			Number:             i + 1,
			Key:                key,
			Title:              md.Title,
			Focus:              md.Focus,
			Objective:          md.Objective,
			OutputArtifactName: md.OutputArtifact,
			Description:        md.Description,
			Phases:             make([]Phase, 0, len(md.Phases)),
		}
		seen := make(map[string]bool, len(md.Phases))
		for j, pd := range md.Phases {
			if pd.ID == "" || pd.Name == "" {
				return nil, fmt.Errorf("%w: module %s phase %d missing id or name", ErrInvalidCatalog, key, j+1)
			}
			if seen[pd.ID] {
				return nil, fmt.Errorf("%w: module %s repeats phase %q", ErrInvalidCatalog, key, pd.ID)
			}
			seen[pd.ID] = true

			steps := make([]Step, 0, len(pd.Steps))
			for _, s := range pd.Steps {
				steps = append(steps, Step(s))
			}
			mod.Phases = append(mod.Phases, Phase{
				ID:               pd.ID,
				Name:             pd.Name,
				Description:      pd.Description,
				PromptTemplate:   pd.PromptTemplate,
				Steps:            steps,
				FocusAreas:       pd.FocusAreas,
				OutputComponents: pd.OutputComponents,
				Methodology:      pd.Methodology,
				AIRole:           pd.AIRole,
				Technique:        pd.Technique,
				ModuleNumber:     mod.Number,
				PhaseNumber:      j + 1,
				ModuleTitle:      mod.Title,
			})
		}
		c.total += len(mod.Phases)
		c.modules = append(c.modules, mod)
	}

	return c, nil
}

// moduleKeyLess orders keys by their trailing number when both have one,
// so module_10 sorts after module_9.
func moduleKeyLess(a, b string) bool {
	na, okA := keySuffix(a)
	nb, okB := keySuffix(b)
	if okA && okB && na != nb {
		return na < nb
	}
	return a < b
}

func keySuffix(key string) (int, bool) {
	idx := strings.LastIndexAny(key, "_-")
	if idx < 0 || idx == len(key)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Meta returns the framework metadata.
func (c *Catalog) Meta() Meta {
	return c.meta
}

// Philosophy returns the framework's guiding principles keyed by name.
func (c *Catalog) Philosophy() map[string]string {
	out := make(map[string]string, len(c.philosophy))
	for k, v := range c.philosophy {
		out[k] = v
	}
	return out
}

// Modules returns all modules in number order.
func (c *Catalog) Modules() []Module {
	out := make([]Module, len(c.modules))
	for i, m := range c.modules {
		out[i] = cloneModule(m)
	}
	return out
}

// Module returns the module with the given number.
func (c *Catalog) Module(number int) (Module, bool) {
	if number < 1 || number > len(c.modules) {
		return Module{}, false
	}
	return cloneModule(c.modules[number-1]), true
}

// PhasesByModule returns the phases of a module, or an empty slice when the
// module does not exist.
func (c *Catalog) PhasesByModule(number int) []Phase {
	if number < 1 || number > len(c.modules) {
		return []Phase{}
	}
	return append([]Phase{}, c.modules[number-1].Phases...)
}

// AllPhases returns every phase in module then phase order.
func (c *Catalog) AllPhases() []Phase {
	out := make([]Phase, 0, c.total)
	for _, m := range c.modules {
		out = append(out, m.Phases...)
	}
	return out
}

// Phase returns the phase at the given position.
func (c *Catalog) Phase(moduleNumber, phaseNumber int) (Phase, bool) {
	if moduleNumber < 1 || moduleNumber > len(c.modules) {
		return Phase{}, false
	}
	phases := c.modules[moduleNumber-1].Phases
	if phaseNumber < 1 || phaseNumber > len(phases) {
		return Phase{}, false
	}
	return phases[phaseNumber-1], true
}

// Contains reports whether the (module, phase) pair exists.
func (c *Catalog) Contains(moduleNumber, phaseNumber int) bool {
	_, ok := c.Phase(moduleNumber, phaseNumber)
	return ok
}

// TotalPhases is the number of phases across all modules.
func (c *Catalog) TotalPhases() int {
	return c.total
}

func cloneModule(m Module) Module {
	m.Phases = append([]Phase{}, m.Phases...)
	return m
}
