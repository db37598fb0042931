// Package parse turns raw command output into structured facts.
//
// Every parser is a pure function that tolerates malformed input: fields it
// cannot find come back as nil or empty, never as an error, because the
// output format of remote tools is not guaranteed.
package parse

import (
	"fmt"
	"sort"
)

// Func extracts fields from one command's stdout
type Func func(text string) map[string]interface{}

// UnknownParserError reports a parser name with no registered function
type UnknownParserError struct {
	Name string
}

func (e *UnknownParserError) Error() string {
	return fmt.Sprintf("unknown parser %q", e.Name)
}

// Registry maps parser names to functions. It is fixed after construction.
type Registry struct {
	parsers map[string]Func
}

// NewRegistry returns the registry of built-in parsers
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Func{
		"parse_meminfo":       Meminfo,
		"parse_dmidecode":     Dmidecode,
		"parse_ethtool":       Ethtool,
		"parse_ethtool_stats": EthtoolStats,
		"parse_sysfs_nic":     SysfsNIC,
		"parse_smart":         Smart,
		"parse_ipmi_psu":      IPMIPSU,
		"parse_ipmi_fans":     IPMIFans,
		"parse_ipmi_thermal":  IPMIThermal,
		"parse_dmesg":         Dmesg,
		"parse_os_release":    OSRelease,
	}}
}

// Lookup resolves a parser by name
func (r *Registry) Lookup(name string) (Func, error) {
	fn, ok := r.parsers[name]
	if !ok {
		return nil, &UnknownParserError{Name: name}
	}
	return fn, nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.parsers[name]
	return ok
}

// Names returns the registered parser names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse runs the named parser. An empty or unknown name yields the Fallback
// record; the unknown case also returns an UnknownParserError so callers can
// note it.
func (r *Registry) Parse(name, text string) (map[string]interface{}, error) {
	if name == "" {
		return Fallback(text), nil
	}
	fn, err := r.Lookup(name)
	if err != nil {
		return Fallback(text), err
	}
	return fn(text), nil
}

// Fallback is the record produced when no parser applies
func Fallback(text string) map[string]interface{} {
	return map[string]interface{}{"raw_len": len(text)}
}
