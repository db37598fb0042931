package policy

import (
	"fmt"
	"strings"

	"github.com/sourceplane/hostcheck/internal/model"
)

// DenyPatterns are matched as substrings of the space-padded, lowercased
// command. The list is fixed; it is not configurable.
var DenyPatterns = []string{
	" rm ",
	" mkfs",
	" dd ",
	" :(){:|:&};:",
	"shutdown",
	"reboot",
	"iptables",
	"sysctl -w ",
	"chown ",
	"chmod ",
}

// DeniedPattern reports a rendered command that matched the deny list
type DeniedPattern struct {
	StepID  string
	Pattern string
}

func (e *DeniedPattern) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("audit: denied pattern %q in step %s", e.Pattern, e.StepID)
	}
	return fmt.Sprintf("audit: denied pattern %q", e.Pattern)
}

// StaticAudit checks one rendered command against the deny list
func StaticAudit(cmd string) error {
	padded := " " + strings.ToLower(cmd) + " "
	for _, p := range DenyPatterns {
		if strings.Contains(padded, p) {
			return &DeniedPattern{Pattern: strings.TrimSpace(p)}
		}
	}
	return nil
}

// AuditPlan runs StaticAudit on every step of plan
func AuditPlan(plan *model.ExecPlan) error {
	for _, step := range plan.Steps {
		if err := AuditStep(step); err != nil {
			return err
		}
	}
	return nil
}

// AuditStep runs StaticAudit on a single compiled step
func AuditStep(step model.ExecStep) error {
	if err := StaticAudit(step.Cmd); err != nil {
		denied := err.(*DeniedPattern)
		denied.StepID = step.ID
		return denied
	}
	return nil
}
