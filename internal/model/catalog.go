package model

// CatalogEntry declares one executable action
type CatalogEntry struct {
	Cmd          string `yaml:"cmd" json:"cmd"`
	ReadOnly     bool   `yaml:"read_only" json:"read_only"`
	RequiresSudo bool   `yaml:"requires_sudo" json:"requires_sudo"`
	Parser       string `yaml:"parser,omitempty" json:"parser,omitempty"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Profile is a named policy bundle selected by a DSL
type Profile struct {
	Name        string   `yaml:"-" json:"name"`
	MaxTimeoutS int      `yaml:"max_timeout_s" json:"max_timeout_s"`
	AllowSudo   []string `yaml:"allow_sudo" json:"allow_sudo"`
}

// AllowsSudo reports whether bin is on the profile's sudo allow-list
func (p *Profile) AllowsSudo(bin string) bool {
	for _, allowed := range p.AllowSudo {
		if allowed == bin {
			return true
		}
	}
	return false
}

// CatalogDocument is the on-disk shape of a catalog file
type CatalogDocument struct {
	Actions  map[string]CatalogEntry `yaml:"actions" json:"actions"`
	Profiles map[string]Profile      `yaml:"profiles" json:"profiles"`
}
