package model

// ExecStep is a fully rendered, timeout-bounded step. It is never mutated
// after compilation.
type ExecStep struct {
	ID        string `yaml:"id" json:"id"`
	Cmd       string `yaml:"cmd" json:"cmd"`
	TimeoutS  int    `yaml:"timeout_s" json:"timeout_s"`
	Parser    string `yaml:"parser,omitempty" json:"parser,omitempty"`
	Validator string `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// ExecPlan is the ordered result of compiling a ToDoDSL
type ExecPlan struct {
	Steps []ExecStep `yaml:"steps" json:"steps"`
}

// StepIDs returns the plan's step ids in execution order
func (p *ExecPlan) StepIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID
	}
	return ids
}
