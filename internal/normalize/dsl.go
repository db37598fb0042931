package normalize

import (
	"fmt"

	"github.com/sourceplane/hostcheck/internal/model"
)

// Defaults applied to fields a DSL author may omit
const (
	DefaultProfile  = "verify_readonly"
	DefaultTimeoutS = 10
)

// NormalizeDSL fills defaults in place and rejects structural problems the
// schema cannot express
func NormalizeDSL(dsl *model.ToDoDSL) error {
	if dsl == nil {
		return fmt.Errorf("dsl cannot be nil")
	}

	if dsl.Profile == "" {
		dsl.Profile = DefaultProfile
	}

	// Initialize empty maps
	if dsl.Context == nil {
		dsl.Context = make(map[string]interface{})
	}
	if dsl.Prechecks == nil {
		dsl.Prechecks = []map[string]interface{}{}
	}
	if dsl.Postchecks == nil {
		dsl.Postchecks = []map[string]interface{}{}
	}
	if dsl.SuccessCriteria == nil {
		dsl.SuccessCriteria = []string{}
	}

	// Step ids key the per-step results, so they must be unique
	seen := make(map[string]bool, len(dsl.Steps))
	for i := range dsl.Steps {
		step := &dsl.Steps[i]
		if step.ID == "" {
			return fmt.Errorf("step %d must have an id", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id: %s", step.ID)
		}
		seen[step.ID] = true

		if step.Args == nil {
			step.Args = make(map[string]interface{})
		}
		if step.TimeoutS <= 0 {
			step.TimeoutS = DefaultTimeoutS
		}
	}

	return nil
}
