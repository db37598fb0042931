package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override file settings
const EnvPrefix = "HOSTCHECK_"

// Load reads configuration from path, then applies HOSTCHECK_ environment
// overrides on top of the defaults. A missing file is not an error when
// path is empty.
//
//	HOSTCHECK_SSH_USER             -> ssh.user
//	HOSTCHECK_JOBS_MAX_CONCURRENT  -> jobs.max_concurrent
//	HOSTCHECK_STORE_ETCD_ENDPOINTS -> store.etcd.endpoints (comma separated)
func Load(path string) (*Config, error) {
	var content []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		content = data
	}
	return load(content)
}

// LoadBytes is Load for configuration already in memory.
func LoadBytes(content []byte) (*Config, error) {
	return load(content)
}

func load(content []byte) (*Config, error) {
	k := koanf.New(".")

	if len(content) > 0 {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps HOSTCHECK_SECTION_FIELD_NAME to section.field_name. The store
// section nests etcd settings one level deeper.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	if section == "store" {
		if rest, nested := strings.CutPrefix(field, "etcd_"); nested {
			return "store.etcd." + rest
		}
	}
	return section + "." + field
}
