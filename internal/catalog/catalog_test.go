package catalog

import (
	"testing"

	"github.com/sourceplane/hostcheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *model.CatalogDocument {
	return &model.CatalogDocument{
		Actions: map[string]model.CatalogEntry{
			"read_meminfo": {Cmd: "cat /proc/meminfo", ReadOnly: true, Parser: "parse_meminfo"},
			"read_dimms":   {Cmd: "sudo -n /usr/sbin/dmidecode -t memory", ReadOnly: true, RequiresSudo: true, Parser: "parse_dmidecode"},
		},
		Profiles: map[string]model.Profile{
			"verify_readonly": {MaxTimeoutS: 30, AllowSudo: []string{"/usr/sbin/dmidecode"}},
			"bare":            {MaxTimeoutS: 5},
		},
	}
}

func TestNew_Lookup(t *testing.T) {
	cat, err := New(sampleDocument())
	require.NoError(t, err)

	assert.Equal(t, []string{"read_dimms", "read_meminfo"}, cat.ActionNames())
	assert.Equal(t, []string{"bare", "verify_readonly"}, cat.ProfileNames())

	entry, ok := cat.Action("read_dimms")
	require.True(t, ok)
	assert.True(t, entry.RequiresSudo)

	p, ok := cat.Profile("verify_readonly")
	require.True(t, ok)
	assert.Equal(t, "verify_readonly", p.Name)
	assert.True(t, p.AllowsSudo("/usr/sbin/dmidecode"))
	assert.False(t, p.AllowsSudo("/usr/bin/ipmitool"))

	bare, err := cat.MustProfile("bare")
	require.NoError(t, err)
	assert.Equal(t, []string{}, bare.AllowSudo)
}

func TestMustLookups(t *testing.T) {
	cat, err := New(sampleDocument())
	require.NoError(t, err)

	_, err = cat.MustAction("rm_rf")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "action", cfgErr.Kind)
	assert.Equal(t, "rm_rf", cfgErr.Name)

	_, err = cat.MustProfile("root")
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "profile", cfgErr.Kind)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	doc := sampleDocument()
	doc.Actions["broken"] = model.CatalogEntry{ReadOnly: true}
	_, err = New(doc)
	assert.ErrorContains(t, err, "missing cmd template")

	doc = sampleDocument()
	doc.Profiles["zero"] = model.Profile{}
	_, err = New(doc)
	assert.ErrorContains(t, err, "max_timeout_s must be > 0")

	_, err = New(&model.CatalogDocument{Actions: sampleDocument().Actions})
	assert.ErrorContains(t, err, "no profiles declared")
}

func TestCheckParsers(t *testing.T) {
	cat, err := New(sampleDocument())
	require.NoError(t, err)

	known := map[string]bool{"parse_meminfo": true, "parse_dmidecode": true}
	assert.NoError(t, cat.CheckParsers(func(n string) bool { return known[n] }))

	delete(known, "parse_dmidecode")
	err = cat.CheckParsers(func(n string) bool { return known[n] })
	assert.ErrorContains(t, err, "parse_dmidecode")
}
