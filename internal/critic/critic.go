// Package critic proposes additional read-only steps after a step fails.
//
// Rules are a fixed table of condition and patch pairs. A patch only ever
// appends steps to a copy of the DSL, so the caller still gates, compiles
// and audits the result like any other submission.
package critic

import (
	"github.com/sourceplane/hostcheck/internal/model"
)

// Failure describes the failing step a patch is proposed for
type Failure struct {
	StepID   string
	Action   string
	Parser   string
	ExitCode int
	Notes    string
}

// Rule is one entry of the critic table
type Rule struct {
	Name    string
	Applies func(dsl *model.ToDoDSL, f Failure) bool
	Steps   func(dsl *model.ToDoDSL, f Failure) []model.ToDoStep
}

// Patch is an accepted proposal
type Patch struct {
	Rule  string
	DSL   *model.ToDoDSL
	Added []model.ToDoStep
}

// Critic evaluates rules in table order; the first rule that adds a step wins
type Critic struct {
	rules []Rule
}

// New returns a critic over rules, or the built-in table when none are given
func New(rules ...Rule) *Critic {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Critic{rules: rules}
}

// DefaultRules returns the built-in rule table
func DefaultRules() []Rule {
	return []Rule{nicSysfsFallback}
}

// Propose returns a patched copy of dsl, or nil when no rule applies or the
// steps a rule would add are already present
func (c *Critic) Propose(dsl *model.ToDoDSL, f Failure) *Patch {
	if dsl == nil {
		return nil
	}
	for _, rule := range c.rules {
		if !rule.Applies(dsl, f) {
			continue
		}
		var added []model.ToDoStep
		for _, step := range rule.Steps(dsl, f) {
			if !dsl.HasStep(step.ID) {
				added = append(added, step)
			}
		}
		if len(added) == 0 {
			continue
		}
		patched := dsl.Clone()
		patched.Steps = append(patched.Steps, added...)
		return &Patch{Rule: rule.Name, DSL: patched, Added: added}
	}
	return nil
}

// FallbackSysfsStepID names the step appended by the nic-sysfs-fallback rule
const FallbackSysfsStepID = "s_fallback_sysfs"

// nicSysfsFallback reads link state from sysfs when ethtool output could not
// be judged on a NIC verification
var nicSysfsFallback = Rule{
	Name: "nic-sysfs-fallback",
	Applies: func(dsl *model.ToDoDSL, f Failure) bool {
		component, _ := dsl.Context["component"].(string)
		return component == "nic" && f.Parser == "parse_ethtool"
	},
	Steps: func(dsl *model.ToDoDSL, f Failure) []model.ToDoStep {
		return []model.ToDoStep{{
			ID:       FallbackSysfsStepID,
			Action:   "read_sysfs_nic",
			Args:     map[string]interface{}{"iface": failedIface(dsl, f.StepID)},
			TimeoutS: 5,
			Parser:   "parse_sysfs_nic",
		}}
	},
}

// failedIface returns the iface argument of the failing step, or eth0
func failedIface(dsl *model.ToDoDSL, stepID string) interface{} {
	for _, s := range dsl.Steps {
		if s.ID != stepID {
			continue
		}
		if iface, ok := s.Args["iface"]; ok && iface != nil && iface != "" {
			return iface
		}
		break
	}
	return "eth0"
}
