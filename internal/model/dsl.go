package model

// Target identifies the remote host a job verifies
type Target struct {
	Host string `yaml:"host" json:"host"`
}

// ToDoStep is a single author-facing step, before rendering
type ToDoStep struct {
	ID        string                 `yaml:"id" json:"id"`
	Action    string                 `yaml:"action" json:"action"`
	Args      map[string]interface{} `yaml:"args" json:"args"`
	TimeoutS  int                    `yaml:"timeout_s" json:"timeout_s"`
	Parser    string                 `yaml:"parser,omitempty" json:"parser,omitempty"`
	Validator string                 `yaml:"validator,omitempty" json:"validator,omitempty"`
}

// ToDoDSL is the declarative verification job submitted by a caller
type ToDoDSL struct {
	JobID           string                   `yaml:"job_id" json:"job_id"`
	Profile         string                   `yaml:"profile" json:"profile"`
	Target          Target                   `yaml:"target" json:"target"`
	Context         map[string]interface{}   `yaml:"context" json:"context"`
	Prechecks       []map[string]interface{} `yaml:"prechecks" json:"prechecks"`
	Steps           []ToDoStep               `yaml:"steps" json:"steps"`
	Postchecks      []map[string]interface{} `yaml:"postchecks" json:"postchecks"`
	SuccessCriteria []string                 `yaml:"success_criteria" json:"success_criteria"`
}

// HasStep reports whether a step with the given id is present
func (d *ToDoDSL) HasStep(id string) bool {
	for _, s := range d.Steps {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a copy whose step slice and step args can be mutated
// without affecting the receiver. Context values are shared.
func (d *ToDoDSL) Clone() *ToDoDSL {
	out := *d
	out.Steps = make([]ToDoStep, len(d.Steps))
	for i, s := range d.Steps {
		args := make(map[string]interface{}, len(s.Args))
		for k, v := range s.Args {
			args[k] = v
		}
		s.Args = args
		out.Steps[i] = s
	}
	return &out
}
