package planner

import (
	"errors"
	"testing"
	"text/template"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/model"
	"github.com/sourceplane/hostcheck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nicDSL() *model.ToDoDSL {
	return &model.ToDoDSL{
		JobID:   "nic-1",
		Profile: "verify_readonly",
		Target:  model.Target{Host: "server-01"},
		Steps: []model.ToDoStep{
			{ID: "link", Action: "read_nic_link", Args: map[string]interface{}{"iface": "eth0"}, TimeoutS: 10, Validator: "nic_link_up"},
			{ID: "sysfs", Action: "read_sysfs_nic", Args: map[string]interface{}{"iface": "eth1"}, TimeoutS: 300, Parser: "custom"},
			{ID: "ping", Action: "ping_self", TimeoutS: 5},
		},
	}
}

func TestCompilePlan(t *testing.T) {
	c := NewCompiler(testutil.Catalog(t))

	plan, err := c.CompilePlan(nicDSL())
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	assert.Equal(t, model.ExecStep{
		ID: "link", Cmd: "/usr/sbin/ethtool eth0", TimeoutS: 10, Parser: "parse_ethtool", Validator: "nic_link_up",
	}, plan.Steps[0])

	// Timeout is clamped to the profile and the parser override wins
	assert.Equal(t, "cat /sys/class/net/eth1/operstate /sys/class/net/eth1/speed", plan.Steps[1].Cmd)
	assert.Equal(t, 30, plan.Steps[1].TimeoutS)
	assert.Equal(t, "custom", plan.Steps[1].Parser)

	// Target host is bound to {{.host}}
	assert.Equal(t, "ping -c 1 server-01", plan.Steps[2].Cmd)
	assert.Equal(t, "", plan.Steps[2].Parser)

	assert.Equal(t, []string{"link", "sysfs", "ping"}, plan.StepIDs())
}

func TestCompilePlan_Deterministic(t *testing.T) {
	cat := testutil.Catalog(t)

	first, err := NewCompiler(cat).CompilePlan(nicDSL())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := NewCompiler(cat).CompilePlan(nicDSL())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Cached templates render the same result
	c := NewCompiler(cat)
	a, err := c.CompilePlan(nicDSL())
	require.NoError(t, err)
	b, err := c.CompilePlan(nicDSL())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompilePlan_UnknownAction(t *testing.T) {
	dsl := nicDSL()
	dsl.Steps[1].Action = "format_disk"

	_, err := NewCompiler(testutil.Catalog(t)).CompilePlan(dsl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "sysfs", compileErr.StepID)
	assert.Contains(t, err.Error(), "format_disk")
}

func TestCompilePlan_MissingArgument(t *testing.T) {
	dsl := nicDSL()
	dsl.Steps[0].Args = map[string]interface{}{"interface": "eth0"}

	_, err := NewCompiler(testutil.Catalog(t)).CompilePlan(dsl)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingArgument)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, "iface", compileErr.Arg)
	assert.Contains(t, err.Error(), `"iface"`)
}

func TestCompilePlan_UnsafeArgument(t *testing.T) {
	for _, value := range []string{"eth0; reboot", "$(id)", "eth0 && ls", "`id`"} {
		dsl := nicDSL()
		dsl.Steps[0].Args = map[string]interface{}{"iface": value}

		_, err := NewCompiler(testutil.Catalog(t)).CompilePlan(dsl)
		assert.ErrorIs(t, err, ErrUnsafeArgument, value)
	}

	dsl := nicDSL()
	dsl.Target.Host = "h;id"
	_, err := NewCompiler(testutil.Catalog(t)).CompilePlan(dsl)
	assert.ErrorIs(t, err, ErrUnsafeArgument)
}

func TestCompilePlan_NonStringArgs(t *testing.T) {
	tests := []struct {
		name string
		arg  interface{}
		want string
	}{
		{"small integer", float64(42), "echo 42"},
		{"large integer", float64(12345678), "echo 12345678"},
		{"very large integer", float64(1e15), "echo 1000000000000000"},
		{"fraction", 2.5, "echo 2.5"},
		{"int", 7, "echo 7"},
		{"bool", true, "echo true"},
	}
	c := NewCompiler(testutil.Catalog(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dsl := &model.ToDoDSL{
				JobID:   "j",
				Profile: "verify_readonly",
				Target:  model.Target{Host: "h"},
				Steps:   []model.ToDoStep{{ID: "e", Action: "echo_arg", Args: map[string]interface{}{"word": tt.arg}, TimeoutS: 1}},
			}

			plan, err := c.CompilePlan(dsl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Steps[0].Cmd)
		})
	}
}

func TestCompilePlan_DecodedNumberArgs(t *testing.T) {
	doc, err := loader.DecodeDocument([]byte(`{"job_id":"j","profile":"verify_readonly","target":{"host":"h"},"steps":[{"id":"e","action":"echo_arg","args":{"word":12345678},"timeout_s":1}]}`))
	require.NoError(t, err)
	dsl, err := loader.DecodeDSL(doc)
	require.NoError(t, err)

	plan, err := NewCompiler(testutil.Catalog(t)).CompilePlan(dsl)
	require.NoError(t, err)
	assert.Equal(t, "echo 12345678", plan.Steps[0].Cmd)
}

func TestCompilePlan_UnknownProfile(t *testing.T) {
	dsl := nicDSL()
	dsl.Profile = "root_everything"

	_, err := NewCompiler(testutil.Catalog(t)).CompilePlan(dsl)
	var cfgErr *catalog.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCompileStep(t *testing.T) {
	c := NewCompiler(testutil.Catalog(t))
	step, err := c.CompileStep(nicDSL(), model.ToDoStep{
		ID: "fallback", Action: "read_sysfs_nic", Args: map[string]interface{}{"iface": "eth2"}, TimeoutS: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "parse_sysfs_nic", step.Parser)
	assert.Equal(t, 5, step.TimeoutS)
}

func TestPlaceholders(t *testing.T) {
	tmpl := template.Must(template.New("t").Parse(`a {{.x}} {{if .y}}{{.z}}{{else}}{{.x}}{{end}} {{.w | printf "%s"}}`))
	assert.Equal(t, []string{"x", "y", "z", "w"}, Placeholders(tmpl))
}
