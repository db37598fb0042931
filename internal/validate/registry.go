// Package validate judges parsed facts against success criteria.
package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Func judges one step's parsed fields. Args come from the reference
// string or from job context defaults.
type Func func(parsed map[string]interface{}, args []interface{}) (ok bool, note string)

// ValidationError reports a validator reference that cannot be evaluated
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %s: %s", e.Name, e.Reason)
}

// Registry maps validator names to functions
type Registry struct {
	validators map[string]Func
}

// NewRegistry returns the registry of built-in validators
func NewRegistry() *Registry {
	return &Registry{validators: map[string]Func{
		"total_mem_within_pct": TotalMemWithinPct,
		"all_expected_dimms":   AllExpectedDIMMs,
		"nic_link_up":          NICLinkUp,
		"nic_speed_at_least":   NICSpeedAtLeast,
		"nic_no_errors":        NICNoErrors,
		"disk_smart_pass":      DiskSmartPass,
		"no_critical_logs":     NoCriticalLogs,
	}}
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.validators[name]
	return ok
}

// Names returns the registered validator names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate evaluates a reference such as "nic_link_up" or
// "total_mem_within_pct(16,2)" against parsed fields. Bare references take
// their arguments from the job context. An unknown name judges the step
// failed and returns a ValidationError alongside the note.
func (r *Registry) Validate(ref string, parsed, context map[string]interface{}) (bool, string, error) {
	name, args := ParseRef(ref)
	fn, ok := r.validators[name]
	if !ok {
		err := &ValidationError{Name: name, Reason: "unknown validator"}
		return false, "Unknown validator " + name, err
	}
	if len(args) == 0 {
		args = contextArgs(name, context)
	}
	if parsed == nil {
		parsed = map[string]interface{}{}
	}
	ok, note := fn(parsed, args)
	return ok, note, nil
}

// ParseRef splits "name(a,b)" into its name and cast arguments. Digit-only
// arguments become ints, other numerics float64, the rest stay strings.
func ParseRef(ref string) (string, []interface{}) {
	name, rest, found := strings.Cut(ref, "(")
	name = strings.TrimSpace(name)
	if !found {
		return name, nil
	}
	rest = strings.TrimRight(strings.TrimSpace(rest), ")")

	var args []interface{}
	for _, raw := range strings.Split(rest, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		args = append(args, castArg(raw))
	}
	return name, args
}

func castArg(s string) interface{} {
	if allDigits(s) {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// contextArgs supplies defaults for bare references from the job context
func contextArgs(name string, context map[string]interface{}) []interface{} {
	switch name {
	case "total_mem_within_pct":
		expected := context["expected_total_gib"]
		if !truthy(expected) {
			if nested, ok := context["expected"].(map[string]interface{}); ok {
				expected = nested["total_gib"]
			}
		}
		pct, ok := context["pct"]
		if !ok || pct == nil {
			pct = 2
		}
		return []interface{}{expected, pct}
	case "all_expected_dimms":
		expected, ok := context["expected_dimms"]
		if !ok || expected == nil {
			expected = []interface{}{}
		}
		return []interface{}{expected}
	}
	return nil
}

func truthy(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// toFloat accepts the numeric shapes parsers and decoded JSON produce
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case *float64:
		if n == nil {
			return 0, false
		}
		return *n, true
	case *int:
		if n == nil {
			return 0, false
		}
		return float64(*n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// argFloat returns args[i] as a float, or def when absent or not numeric
func argFloat(args []interface{}, i int, def float64) float64 {
	if i >= len(args) {
		return def
	}
	if f, ok := toFloat(args[i]); ok {
		return f
	}
	return def
}
