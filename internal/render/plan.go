package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sourceplane/hostcheck/internal/model"
	"gopkg.in/yaml.v3"
)

// PlanDocument is the serialized form of a compiled job
type PlanDocument struct {
	JobID   string           `json:"job_id" yaml:"job_id"`
	Profile string           `json:"profile" yaml:"profile"`
	Host    string           `json:"host" yaml:"host"`
	Steps   []model.ExecStep `json:"steps" yaml:"steps"`
}

// Renderer serializes compiled plans
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Document pairs a plan with the DSL it was compiled from
func (r *Renderer) Document(dsl *model.ToDoDSL, plan *model.ExecPlan) *PlanDocument {
	return &PlanDocument{
		JobID:   dsl.JobID,
		Profile: dsl.Profile,
		Host:    dsl.Target.Host,
		Steps:   plan.Steps,
	}
}

// RenderJSON renders plan as JSON
func (r *Renderer) RenderJSON(doc *PlanDocument) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// RenderYAML renders plan as YAML
func (r *Renderer) RenderYAML(doc *PlanDocument) ([]byte, error) {
	return yaml.Marshal(doc)
}

// Render encodes doc in the named format (json or yaml)
func (r *Renderer) Render(doc *PlanDocument, format string) ([]byte, error) {
	switch format {
	case "yaml", "yml":
		return r.RenderYAML(doc)
	case "json", "":
		return r.RenderJSON(doc)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// WritePlan writes plan to file (JSON or YAML based on extension)
func (r *Renderer) WritePlan(doc *PlanDocument, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	}

	data, err := r.Render(doc, format)
	if err != nil {
		return fmt.Errorf("failed to render plan: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan to %s: %w", path, err)
	}

	return nil
}
