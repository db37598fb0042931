package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/model"
)

const maxCmdWidth = 60

// PlanViewer provides human-readable views of a compiled plan
type PlanViewer struct {
	doc *PlanDocument
}

// NewPlanViewer creates a new plan viewer
func NewPlanViewer(doc *PlanDocument) *PlanViewer {
	return &PlanViewer{doc: doc}
}

// ViewTree returns the job as a tree: job, host, then steps in order
func (pv *PlanViewer) ViewTree() string {
	if len(pv.doc.Steps) == 0 {
		return "No steps in plan"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s [%s]\n", pv.doc.JobID, pv.doc.Profile))
	sb.WriteString(fmt.Sprintf("└─ %s\n", pv.doc.Host))

	for i, step := range pv.doc.Steps {
		isLast := i == len(pv.doc.Steps)-1
		prefix := "   ├─ "
		connector := "   │  "
		if isLast {
			prefix = "   └─ "
			connector = "      "
		}

		sb.WriteString(fmt.Sprintf("%s%s [%ds] | %s\n", prefix, step.ID, step.TimeoutS, shorten(step.Cmd)))
		if step.Parser != "" {
			sb.WriteString(fmt.Sprintf("%s(parser) %s\n", connector, step.Parser))
		}
		if step.Validator != "" {
			sb.WriteString(fmt.Sprintf("%s(validator) %s\n", connector, step.Validator))
		}
	}

	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d steps\n", len(pv.doc.Steps)))
	return sb.String()
}

// FormatEvent renders one job event as a single line
func FormatEvent(ev model.Event) string {
	switch ev.Type {
	case model.EventPlanPreview:
		return fmt.Sprintf("□ Plan: %d steps", len(ev.Steps))
	case model.EventStepStart:
		return fmt.Sprintf("□ %s | %s", ev.StepID, shorten(ev.Cmd))
	case model.EventStepResult:
		exit, ms := 0, int64(0)
		if ev.Exit != nil {
			exit = *ev.Exit
		}
		if ev.MS != nil {
			ms = *ev.MS
		}
		mark := "✓"
		if exit != 0 {
			mark = "✗"
		}
		return fmt.Sprintf("%s %s exit=%d (%dms)", mark, ev.StepID, exit, ms)
	case model.EventVerdict:
		return fmt.Sprintf("═ %s: %s", ev.Status, ev.Summary)
	default:
		return fmt.Sprintf("? %s", ev.Type)
	}
}

// ViewResult lists each step's judgment followed by the verdict
func ViewResult(res *model.VerificationResult) string {
	var sb strings.Builder
	for _, step := range res.PerStep {
		mark := "✓"
		if !step.OK {
			mark = "✗"
		}
		line := fmt.Sprintf("%s %s", mark, step.ID)
		if step.Notes != "" {
			line += " | " + step.Notes
		}
		sb.WriteString(line + "\n")
	}
	for _, ev := range res.Evidence {
		keys := make([]string, 0, len(ev))
		for k := range ev {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, ev[k]))
		}
		sb.WriteString("  evidence: " + strings.Join(parts, " ") + "\n")
	}
	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("%s: %s\n", res.Status, res.Summary))
	return sb.String()
}

// ViewCatalog lists actions with their classification, then profiles
func ViewCatalog(cat *catalog.Catalog) string {
	var sb strings.Builder
	sb.WriteString("Actions:\n")
	for _, name := range cat.ActionNames() {
		entry, _ := cat.Action(name)
		flags := []string{}
		if entry.ReadOnly {
			flags = append(flags, "read-only")
		} else {
			flags = append(flags, "mutating")
		}
		if entry.RequiresSudo {
			flags = append(flags, "sudo")
		}
		line := fmt.Sprintf("  %s [%s] | %s", name, strings.Join(flags, ","), shorten(entry.Cmd))
		if entry.Parser != "" {
			line += fmt.Sprintf(" (parser: %s)", entry.Parser)
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString("\nProfiles:\n")
	for _, name := range cat.ProfileNames() {
		p, _ := cat.Profile(name)
		sudo := "none"
		if len(p.AllowSudo) > 0 {
			sudo = strings.Join(p.AllowSudo, ", ")
		}
		sb.WriteString(fmt.Sprintf("  %s (max %ds, sudo: %s)\n", name, p.MaxTimeoutS, sudo))
	}
	return sb.String()
}

// shorten truncates long commands for readability
func shorten(cmd string) string {
	if len(cmd) > maxCmdWidth {
		return cmd[:maxCmdWidth-3] + "..."
	}
	return cmd
}
