package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_Shipped(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("..", "..", "configs", "catalog.yaml"))
	require.NoError(t, err)
	require.NoError(t, cat.CheckParsers(parse.NewRegistry().Has))

	entry, ok := cat.Action("read_meminfo")
	require.True(t, ok)
	assert.True(t, entry.ReadOnly)
	assert.Equal(t, "parse_meminfo", entry.Parser)

	profile, ok := cat.Profile("verify_readonly")
	require.True(t, ok)
	assert.Greater(t, profile.MaxTimeoutS, 0)
}

func TestLoadCatalog_Missing(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "actions: [unclosed"},
		{"no actions", "profiles:\n  p:\n    max_timeout_s: 5\n"},
		{"empty cmd", "actions:\n  a:\n    read_only: true\nprofiles:\n  p:\n    max_timeout_s: 5\n"},
		{"bad timeout", "actions:\n  a:\n    cmd: uptime\nprofiles:\n  p:\n    max_timeout_s: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			var cfgErr *catalog.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestDecodeDocument(t *testing.T) {
	yamlDoc := "job_id: j1\ntarget:\n  host: h\nsteps:\n  - id: s1\n    action: read_meminfo\n    timeout_s: 5\n"
	jsonDoc := `{"job_id":"j1","target":{"host":"h"},"steps":[{"id":"s1","action":"read_meminfo","timeout_s":5}]}`

	fromYAML, err := DecodeDocument([]byte(yamlDoc))
	require.NoError(t, err)
	fromJSON, err := DecodeDocument([]byte(jsonDoc))
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)

	// numbers come back as float64, as encoding/json produces them
	step := fromYAML.(map[string]interface{})["steps"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, float64(5), step["timeout_s"])

	dsl, err := DecodeDSL(fromYAML)
	require.NoError(t, err)
	assert.Equal(t, "j1", dsl.JobID)
	assert.Equal(t, "h", dsl.Target.Host)
	require.Len(t, dsl.Steps, 1)
	assert.Equal(t, 5, dsl.Steps[0].TimeoutS)

	_, err = DecodeDocument([]byte("{unclosed"))
	assert.Error(t, err)
}

func TestDecodeDSL_WrongShape(t *testing.T) {
	_, err := DecodeDSL(map[string]interface{}{"steps": "not a list"})
	assert.Error(t, err)
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("job_id: j1\n"), 0644))

	data, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "job_id: j1\n", string(data))

	_, err = ReadDocument(path + ".missing")
	assert.Error(t, err)
}
