package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "configs/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, "verifier", cfg.SSH.User)
	assert.Equal(t, 22, cfg.SSH.Port)
	assert.Equal(t, 10*time.Second, cfg.SSH.DialTimeout.Duration())
	assert.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "hostcheck.jobs", cfg.Events.SubjectPrefix)
	assert.Equal(t, zapcore.InfoLevel, cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  path: /etc/hostcheck/catalog.yaml
ssh:
  user: ops
  port: 2222
  dial_timeout: 3s
jobs:
  max_concurrent: 8
store:
  backend: etcd
  etcd:
    endpoints: ["http://10.0.0.1:2379", "http://10.0.0.2:2379"]
    prefix: /verify
log:
  level: debug
  format: console
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/hostcheck/catalog.yaml", cfg.Catalog.Path)
	assert.Equal(t, "ops", cfg.SSH.User)
	assert.Equal(t, 2222, cfg.SSH.Port)
	assert.Equal(t, 3*time.Second, cfg.SSH.DialTimeout.Duration())
	assert.Equal(t, "~/.ssh/runner_key", cfg.SSH.KeyPath, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, BackendEtcd, cfg.Store.Backend)
	assert.Equal(t, []string{"http://10.0.0.1:2379", "http://10.0.0.2:2379"}, cfg.Store.Etcd.Endpoints)
	assert.Equal(t, "/verify", cfg.Store.Etcd.Prefix)
	assert.Equal(t, zapcore.DebugLevel, cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOSTCHECK_SSH_USER", "envuser")
	t.Setenv("HOSTCHECK_SSH_KEY_PATH", "/keys/id")
	t.Setenv("HOSTCHECK_JOBS_MAX_CONCURRENT", "2")
	t.Setenv("HOSTCHECK_STORE_BACKEND", "etcd")
	t.Setenv("HOSTCHECK_STORE_ETCD_ENDPOINTS", "http://a:2379")
	t.Setenv("HOSTCHECK_EVENTS_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := LoadBytes([]byte("ssh:\n  user: fileuser\n"))
	require.NoError(t, err)

	assert.Equal(t, "envuser", cfg.SSH.User)
	assert.Equal(t, "/keys/id", cfg.SSH.KeyPath)
	assert.Equal(t, 2, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, []string{"http://a:2379"}, cfg.Store.Etcd.Endpoints)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NatsURL)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "ssh.user", envKey("HOSTCHECK_SSH_USER"))
	assert.Equal(t, "ssh.dial_timeout", envKey("HOSTCHECK_SSH_DIAL_TIMEOUT"))
	assert.Equal(t, "store.etcd.dial_timeout", envKey("HOSTCHECK_STORE_ETCD_DIAL_TIMEOUT"))
	assert.Equal(t, "store.backend", envKey("HOSTCHECK_STORE_BACKEND"))
	assert.Equal(t, "events.subject_prefix", envKey("HOSTCHECK_EVENTS_SUBJECT_PREFIX"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty catalog", func(c *Config) { c.Catalog.Path = "" }},
		{"empty user", func(c *Config) { c.SSH.User = "" }},
		{"bad port", func(c *Config) { c.SSH.Port = 70000 }},
		{"no workers", func(c *Config) { c.Jobs.MaxConcurrent = 0 }},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }},
		{"etcd without endpoints", func(c *Config) { c.Store.Backend = BackendEtcd }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadBytes([]byte("ssh:\n  dial_timeout: soon\n"))
	assert.Error(t, err)

	_, err = LoadBytes([]byte("jobs: [unclosed"))
	assert.Error(t, err)
}

func TestDuration_MarshalText(t *testing.T) {
	text, err := Duration(90 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("-1s")))
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "hostcheck.yaml"))
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, []string{"http://127.0.0.1:2379"}, cfg.Store.Etcd.Endpoints)
	assert.Equal(t, 10*time.Second, cfg.SSH.DialTimeout.Duration())
	assert.Empty(t, cfg.Events.NatsURL)
}
