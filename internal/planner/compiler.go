package planner

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/model"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrMissingArgument = errors.New("missing argument")
	ErrUnsafeArgument  = errors.New("unsafe argument")
)

// HostVar is the placeholder name bound to the DSL target host
const HostVar = "host"

// shellMeta are the characters an argument value may never carry into a
// rendered command
const shellMeta = ";&|$`<>(){}[]\\\"'*?!#~\n\r"

// CompileError reports a step that could not be rendered into an ExecStep
type CompileError struct {
	StepID string
	Action string
	Arg    string
	Err    error
}

func (e *CompileError) Error() string {
	switch {
	case errors.Is(e.Err, ErrUnknownAction):
		return fmt.Sprintf("step %s: unknown action %s", e.StepID, e.Action)
	case e.Arg != "":
		return fmt.Sprintf("step %s: %v %q for action %s", e.StepID, e.Err, e.Arg, e.Action)
	default:
		return fmt.Sprintf("step %s: action %s: %v", e.StepID, e.Action, e.Err)
	}
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Compiler renders DSL steps into an ExecPlan against a catalog
type Compiler struct {
	catalog *catalog.Catalog

	mu            sync.Mutex
	templateCache map[string]*compiledTemplate
}

type compiledTemplate struct {
	tmpl   *template.Template
	fields []string // referenced placeholder names in template order
}

// NewCompiler creates a compiler bound to a loaded catalog
func NewCompiler(cat *catalog.Catalog) *Compiler {
	return &Compiler{
		catalog:       cat,
		templateCache: make(map[string]*compiledTemplate),
	}
}

// CompilePlan renders every step of dsl in order. The result depends only on
// dsl and the catalog.
func (c *Compiler) CompilePlan(dsl *model.ToDoDSL) (*model.ExecPlan, error) {
	profile, err := c.catalog.MustProfile(dsl.Profile)
	if err != nil {
		return nil, err
	}

	plan := &model.ExecPlan{Steps: make([]model.ExecStep, 0, len(dsl.Steps))}
	for _, step := range dsl.Steps {
		execStep, err := c.compileStep(dsl.Target.Host, profile, step)
		if err != nil {
			return nil, err
		}
		plan.Steps = append(plan.Steps, execStep)
	}
	return plan, nil
}

// CompileStep renders a single step in the context of dsl's target and profile
func (c *Compiler) CompileStep(dsl *model.ToDoDSL, step model.ToDoStep) (model.ExecStep, error) {
	profile, err := c.catalog.MustProfile(dsl.Profile)
	if err != nil {
		return model.ExecStep{}, err
	}
	return c.compileStep(dsl.Target.Host, profile, step)
}

func (c *Compiler) compileStep(host string, profile *model.Profile, step model.ToDoStep) (model.ExecStep, error) {
	entry, ok := c.catalog.Action(step.Action)
	if !ok {
		return model.ExecStep{}, &CompileError{StepID: step.ID, Action: step.Action, Err: ErrUnknownAction}
	}

	ct, err := c.template(step.Action, entry.Cmd)
	if err != nil {
		return model.ExecStep{}, &CompileError{StepID: step.ID, Action: step.Action, Err: err}
	}

	// Build template context: step args plus the target host
	vars := make(map[string]interface{}, len(step.Args)+1)
	for k, v := range step.Args {
		vars[k] = argValue(v)
	}
	vars[HostVar] = host

	for _, field := range ct.fields {
		value, present := vars[field]
		if !present {
			return model.ExecStep{}, &CompileError{StepID: step.ID, Action: step.Action, Arg: field, Err: ErrMissingArgument}
		}
		if strings.ContainsAny(fmt.Sprint(value), shellMeta) {
			return model.ExecStep{}, &CompileError{StepID: step.ID, Action: step.Action, Arg: field, Err: ErrUnsafeArgument}
		}
	}

	var buf strings.Builder
	if err := ct.tmpl.Execute(&buf, vars); err != nil {
		return model.ExecStep{}, &CompileError{StepID: step.ID, Action: step.Action, Err: fmt.Errorf("failed to render template: %w", err)}
	}

	timeout := step.TimeoutS
	if timeout > profile.MaxTimeoutS {
		timeout = profile.MaxTimeoutS
	}

	parser := step.Parser
	if parser == "" {
		parser = entry.Parser
	}

	return model.ExecStep{
		ID:        step.ID,
		Cmd:       buf.String(),
		TimeoutS:  timeout,
		Parser:    parser,
		Validator: step.Validator,
	}, nil
}

// argValue renders decoded JSON numbers without exponents, so 12345678
// stays 12345678 in the command line
func argValue(v interface{}) interface{} {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	default:
		return v
	}
}

// template returns the parsed template for an action, parsing it on first use
func (c *Compiler) template(action, cmd string) (*compiledTemplate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ct, exists := c.templateCache[action]; exists {
		return ct, nil
	}

	tmpl, err := template.New(action).Option("missingkey=error").Parse(cmd)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	ct := &compiledTemplate{tmpl: tmpl, fields: Placeholders(tmpl)}
	c.templateCache[action] = ct
	return ct, nil
}

// Placeholders lists the distinct top-level field names a template
// references, in order of first appearance
func Placeholders(tmpl *template.Template) []string {
	if tmpl == nil || tmpl.Tree == nil {
		return nil
	}
	seen := make(map[string]bool)
	var fields []string
	walkNode(tmpl.Tree.Root, func(name string) {
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	})
	return fields
}

func walkNode(node parse.Node, visit func(string)) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			walkNode(child, visit)
		}
	case *parse.ActionNode:
		walkNode(n.Pipe, visit)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			walkNode(cmd, visit)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			walkNode(arg, visit)
		}
	case *parse.FieldNode:
		if len(n.Ident) > 0 {
			visit(n.Ident[0])
		}
	case *parse.IfNode:
		walkBranch(&n.BranchNode, visit)
	case *parse.RangeNode:
		walkBranch(&n.BranchNode, visit)
	case *parse.WithNode:
		walkBranch(&n.BranchNode, visit)
	}
}

func walkBranch(b *parse.BranchNode, visit func(string)) {
	walkNode(b.Pipe, visit)
	walkNode(b.List, visit)
	walkNode(b.ElseList, visit)
}
