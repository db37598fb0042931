// Package config loads hostcheck configuration from YAML and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourceplane/hostcheck/internal/logging"
)

// Config is the root configuration.
type Config struct {
	Catalog CatalogConfig  `koanf:"catalog"`
	SSH     SSHConfig      `koanf:"ssh"`
	Jobs    JobsConfig     `koanf:"jobs"`
	Store   StoreConfig    `koanf:"store"`
	Events  EventsConfig   `koanf:"events"`
	Log     logging.Config `koanf:"log"`
}

// CatalogConfig locates the action catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// SSHConfig holds remote execution credentials.
type SSHConfig struct {
	User        string   `koanf:"user"`
	Port        int      `koanf:"port"`
	KeyPath     string   `koanf:"key_path"`
	DialTimeout Duration `koanf:"dial_timeout"`
}

// JobsConfig bounds background job execution.
type JobsConfig struct {
	MaxConcurrent int `koanf:"max_concurrent"`
}

// StoreConfig selects where job records are persisted.
type StoreConfig struct {
	Backend string     `koanf:"backend"`
	Etcd    EtcdConfig `koanf:"etcd"`
}

// EtcdConfig holds etcd connection settings.
type EtcdConfig struct {
	Endpoints   []string `koanf:"endpoints"`
	Prefix      string   `koanf:"prefix"`
	DialTimeout Duration `koanf:"dial_timeout"`
}

// EventsConfig enables the NATS event mirror when NatsURL is set.
type EventsConfig struct {
	NatsURL       string `koanf:"nats_url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// Store backends
const (
	BackendMemory = "memory"
	BackendEtcd   = "etcd"
)

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{Path: "configs/catalog.yaml"},
		SSH: SSHConfig{
			User:        "verifier",
			Port:        22,
			KeyPath:     "~/.ssh/runner_key",
			DialTimeout: Duration(10 * time.Second),
		},
		Jobs: JobsConfig{MaxConcurrent: 4},
		Store: StoreConfig{
			Backend: BackendMemory,
			Etcd: EtcdConfig{
				Prefix:      "/hostcheck",
				DialTimeout: Duration(5 * time.Second),
			},
		},
		Events: EventsConfig{SubjectPrefix: "hostcheck.jobs"},
		Log:    logging.NewDefaultConfig(),
	}
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if c.SSH.User == "" {
		return fmt.Errorf("ssh.user is required")
	}
	if c.SSH.Port < 1 || c.SSH.Port > 65535 {
		return fmt.Errorf("ssh.port must be between 1 and 65535, got %d", c.SSH.Port)
	}
	if c.Jobs.MaxConcurrent < 1 {
		return fmt.Errorf("jobs.max_concurrent must be at least 1, got %d", c.Jobs.MaxConcurrent)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendEtcd:
		if len(c.Store.Etcd.Endpoints) == 0 {
			return fmt.Errorf("store.etcd.endpoints is required for the etcd backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory or etcd, got %q", c.Store.Backend)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Duration is a time.Duration that unmarshals from strings like "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
