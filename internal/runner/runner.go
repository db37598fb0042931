package runner

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/sourceplane/hostcheck/internal/model"
	"go.uber.org/zap"
)

// Output is what a transport captured from one remote command
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Transport runs a single command on a remote host. A non-zero remote exit
// status is reported through Output, not as an error. Implementations must
// return promptly once ctx is done.
type Transport interface {
	Run(ctx context.Context, host, cmd string) (*Output, error)
}

// Sink receives step lifecycle events in emission order
type Sink interface {
	Emit(ev model.Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ev model.Event)

// Emit calls f(ev)
func (f SinkFunc) Emit(ev model.Event) {
	f(ev)
}

// Runner executes a compiled plan against one host, one step at a time.
type Runner struct {
	transport Transport
	logger    *zap.Logger
	unit      time.Duration
}

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the runner's logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTimeoutUnit changes the unit ExecStep.TimeoutS is measured in.
// Production code keeps the default of one second.
func WithTimeoutUnit(unit time.Duration) Option {
	return func(r *Runner) {
		if unit > 0 {
			r.unit = unit
		}
	}
}

// NewRunner creates a runner over the given transport
func NewRunner(transport Transport, opts ...Option) *Runner {
	r := &Runner{
		transport: transport,
		logger:    zap.NewNop(),
		unit:      time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExecutePlan runs every step in plan order. A failing or timed-out step
// never stops the remaining steps. One RawResult is returned per step.
func (r *Runner) ExecutePlan(ctx context.Context, host string, plan *model.ExecPlan, sink Sink) []model.RawResult {
	results := make([]model.RawResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		results = append(results, r.ExecuteStep(ctx, host, step, sink))
	}
	return results
}

// ExecuteStep runs one step, emitting step_start before and step_result after
func (r *Runner) ExecuteStep(ctx context.Context, host string, step model.ExecStep, sink Sink) model.RawResult {
	if sink != nil {
		sink.Emit(model.StepStartEvent(step.ID, step.Cmd))
	}

	rr := r.RunCmd(ctx, host, step.Cmd, time.Duration(step.TimeoutS)*r.unit)
	rr.StepID = step.ID

	r.logger.Debug("step finished",
		zap.String("step_id", step.ID),
		zap.Int("exit_code", rr.ExitCode),
		zap.Int64("duration_ms", rr.DurationMS),
		zap.Bool("truncated", rr.Truncated))

	if sink != nil {
		sink.Emit(model.StepResultEvent(step.ID, rr.ExitCode, rr.DurationMS))
	}
	return rr
}

// RunCmd runs cmd bounded by timeout and converts every outcome into a
// RawResult: timeouts become exit 124, transport failures exit 255.
func (r *Runner) RunCmd(ctx context.Context, host, cmd string, timeout time.Duration) model.RawResult {
	start := time.Now()

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := r.transport.Run(stepCtx, host, cmd)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			r.logger.Warn("step timed out", zap.String("host", host), zap.Duration("timeout", timeout))
			return model.RawResult{ExitCode: model.ExitTimeout, Stderr: "TIMEOUT", DurationMS: elapsed}
		}
		r.logger.Warn("step transport failure", zap.String("host", host), zap.Error(err))
		stderr, _ := truncate([]byte(err.Error()), model.StderrCap)
		return model.RawResult{ExitCode: model.ExitTransportErr, Stderr: stderr, DurationMS: elapsed}
	}

	stdout, outTrunc := truncate(out.Stdout, model.StdoutCap)
	stderr, errTrunc := truncate(out.Stderr, model.StderrCap)
	return model.RawResult{
		ExitCode:   out.ExitCode,
		Stdout:     stdout,
		Stderr:     stderr,
		DurationMS: elapsed,
		Truncated:  outTrunc || errTrunc,
	}
}

// truncate caps b at limit bytes without splitting a UTF-8 sequence. The flag
// reports whether b was longer than limit.
func truncate(b []byte, limit int) (string, bool) {
	if len(b) <= limit {
		return string(b), false
	}
	cut := limit
	for cut > 0 && cut > limit-utf8.UTFMax && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]), true
}
