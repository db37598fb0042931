// Package catalog holds the action and profile declarations that bound what
// a verification job is allowed to run.
package catalog

import (
	"fmt"
	"sort"

	"github.com/sourceplane/hostcheck/internal/model"
)

// ConfigError reports a malformed or missing catalog declaration
type ConfigError struct {
	Kind   string // "action" or "profile"
	Name   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("catalog %s %q: %s", e.Kind, e.Name, e.Reason)
}

// Catalog is the loaded, validated set of actions and profiles
type Catalog struct {
	actions  map[string]model.CatalogEntry
	profiles map[string]*model.Profile
}

// New validates a catalog document and indexes it for lookup
func New(doc *model.CatalogDocument) (*Catalog, error) {
	if doc == nil {
		return nil, &ConfigError{Kind: "document", Name: "", Reason: "catalog document is nil"}
	}
	if len(doc.Actions) == 0 {
		return nil, &ConfigError{Kind: "document", Name: "", Reason: "no actions declared"}
	}
	if len(doc.Profiles) == 0 {
		return nil, &ConfigError{Kind: "document", Name: "", Reason: "no profiles declared"}
	}

	c := &Catalog{
		actions:  make(map[string]model.CatalogEntry, len(doc.Actions)),
		profiles: make(map[string]*model.Profile, len(doc.Profiles)),
	}

	for name, entry := range doc.Actions {
		if name == "" {
			return nil, &ConfigError{Kind: "action", Name: name, Reason: "empty action name"}
		}
		if entry.Cmd == "" {
			return nil, &ConfigError{Kind: "action", Name: name, Reason: "missing cmd template"}
		}
		c.actions[name] = entry
	}

	for name, p := range doc.Profiles {
		if p.MaxTimeoutS <= 0 {
			return nil, &ConfigError{Kind: "profile", Name: name, Reason: "max_timeout_s must be > 0"}
		}
		profile := p
		profile.Name = name
		if profile.AllowSudo == nil {
			profile.AllowSudo = []string{}
		}
		c.profiles[name] = &profile
	}

	return c, nil
}

// Action looks up an action by name
func (c *Catalog) Action(name string) (model.CatalogEntry, bool) {
	entry, ok := c.actions[name]
	return entry, ok
}

// Profile looks up a profile by name
func (c *Catalog) Profile(name string) (*model.Profile, bool) {
	p, ok := c.profiles[name]
	return p, ok
}

// MustAction returns the named action or a ConfigError
func (c *Catalog) MustAction(name string) (model.CatalogEntry, error) {
	entry, ok := c.actions[name]
	if !ok {
		return model.CatalogEntry{}, &ConfigError{Kind: "action", Name: name, Reason: "not declared"}
	}
	return entry, nil
}

// MustProfile returns the named profile or a ConfigError
func (c *Catalog) MustProfile(name string) (*model.Profile, error) {
	p, ok := c.profiles[name]
	if !ok {
		return nil, &ConfigError{Kind: "profile", Name: name, Reason: "not declared"}
	}
	return p, nil
}

// ActionNames returns all action names in sorted order
func (c *Catalog) ActionNames() []string {
	names := make([]string, 0, len(c.actions))
	for name := range c.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProfileNames returns all profile names in sorted order
func (c *Catalog) ProfileNames() []string {
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckParsers verifies every default parser names an entry in known
func (c *Catalog) CheckParsers(known func(string) bool) error {
	for _, name := range c.ActionNames() {
		entry := c.actions[name]
		if entry.Parser != "" && !known(entry.Parser) {
			return &ConfigError{Kind: "action", Name: name, Reason: fmt.Sprintf("unknown default parser %q", entry.Parser)}
		}
	}
	return nil
}
