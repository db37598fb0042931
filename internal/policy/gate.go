// Package policy holds the pre-execution safety checks. Gate runs on catalog
// metadata before rendering; StaticAudit runs on every rendered command.
package policy

import (
	"fmt"
	"strings"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/model"
)

// PolicyViolation reports a DSL the selected profile does not permit
type PolicyViolation struct {
	Action string
	Binary string
	Reason string
}

func (e *PolicyViolation) Error() string {
	switch {
	case e.Binary != "":
		return fmt.Sprintf("policy: %s (action %s, binary %q)", e.Reason, e.Action, e.Binary)
	case e.Action != "":
		return fmt.Sprintf("policy: %s (action %s)", e.Reason, e.Action)
	default:
		return "policy: " + e.Reason
	}
}

// Gate checks a DSL against catalog metadata. Checks run in a fixed order and
// stop at the first violation.
func Gate(dsl *model.ToDoDSL, cat *catalog.Catalog) error {
	profile, ok := cat.Profile(dsl.Profile)
	if !ok {
		return &PolicyViolation{Reason: fmt.Sprintf("unknown profile %s", dsl.Profile)}
	}

	for _, step := range dsl.Steps {
		if err := GateStep(step, profile, cat); err != nil {
			return err
		}
	}
	return nil
}

// GateStep applies the per-action checks to a single step
func GateStep(step model.ToDoStep, profile *model.Profile, cat *catalog.Catalog) error {
	entry, ok := cat.Action(step.Action)
	if !ok {
		return &PolicyViolation{Action: step.Action, Reason: "unknown action"}
	}
	if !entry.ReadOnly {
		return &PolicyViolation{Action: step.Action, Reason: "action is not read-only"}
	}
	if entry.RequiresSudo {
		bin := SudoBinary(entry.Cmd)
		if !profile.AllowsSudo(bin) {
			return &PolicyViolation{Action: step.Action, Binary: bin, Reason: fmt.Sprintf("sudo binary not allowed by profile %s", profile.Name)}
		}
	}
	return nil
}

// SudoBinary returns the binary a template invokes through sudo: the first
// token after a leading "sudo" that is not an option flag. Templates that do
// not begin with "sudo " yield "".
func SudoBinary(cmd string) string {
	if !strings.HasPrefix(cmd, "sudo ") {
		return ""
	}
	for _, tok := range strings.Fields(cmd)[1:] {
		if strings.HasPrefix(tok, "-") {
			continue
		}
		return tok
	}
	return ""
}
