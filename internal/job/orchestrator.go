package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/hostcheck/internal/catalog"
	"github.com/sourceplane/hostcheck/internal/critic"
	"github.com/sourceplane/hostcheck/internal/loader"
	"github.com/sourceplane/hostcheck/internal/metrics"
	"github.com/sourceplane/hostcheck/internal/model"
	"github.com/sourceplane/hostcheck/internal/normalize"
	"github.com/sourceplane/hostcheck/internal/parse"
	"github.com/sourceplane/hostcheck/internal/planner"
	"github.com/sourceplane/hostcheck/internal/policy"
	"github.com/sourceplane/hostcheck/internal/runner"
	"github.com/sourceplane/hostcheck/internal/schema"
	"github.com/sourceplane/hostcheck/internal/store"
	"github.com/sourceplane/hostcheck/internal/validate"
)

// DefaultMaxConcurrent bounds how many jobs execute at once
const DefaultMaxConcurrent = 4

// Orchestrator owns the job registry and runs accepted jobs
type Orchestrator struct {
	catalog    *catalog.Catalog
	schema     *schema.Validator
	compiler   *planner.Compiler
	runner     *runner.Runner
	parsers    *parse.Registry
	validators *validate.Registry
	critic     *critic.Critic
	store      store.Writer
	registry   *Registry
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time

	maxConcurrent int
	slots         chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	draining bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithStore sets where job records are persisted. The default is an
// in-memory store.
func WithStore(w store.Writer) Option {
	return func(o *Orchestrator) { o.store = w }
}

// WithLogger sets the orchestrator's logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics enables Prometheus accounting
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMaxConcurrent sets the number of jobs that may execute at once
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithCritic replaces the built-in critic rule table
func WithCritic(c *critic.Critic) Option {
	return func(o *Orchestrator) { o.critic = c }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator over a validated catalog. Every default
// parser the catalog names must be registered.
func New(cat *catalog.Catalog, run *runner.Runner, opts ...Option) (*Orchestrator, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}
	parsers := parse.NewRegistry()
	if err := cat.CheckParsers(parsers.Has); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		catalog:       cat,
		schema:        validator,
		compiler:      planner.NewCompiler(cat),
		runner:        run,
		parsers:       parsers,
		validators:    validate.NewRegistry(),
		critic:        critic.New(),
		store:         store.NewMemory(),
		registry:      NewRegistry(),
		logger:        zap.NewNop(),
		now:           time.Now,
		maxConcurrent: DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.slots = make(chan struct{}, o.maxConcurrent)
	o.ctx, o.cancel = context.WithCancel(context.Background())
	return o, nil
}

// Plan runs the submission checks without registering a job. It returns
// the normalized DSL and its compiled plan.
func (o *Orchestrator) Plan(payload []byte) (*model.ToDoDSL, *model.ExecPlan, error) {
	doc, err := loader.DecodeDocument(payload)
	if err != nil {
		return nil, nil, &RejectionError{Stage: StageSchema, Err: &schema.SchemaError{Err: err}}
	}
	if err := o.schema.ValidateDSL(doc); err != nil {
		return nil, nil, &RejectionError{Stage: StageSchema, Err: err}
	}
	dsl, err := loader.DecodeDSL(doc)
	if err != nil {
		return nil, nil, &RejectionError{Stage: StageSchema, Err: &schema.SchemaError{Err: err}}
	}
	if err := normalize.NormalizeDSL(dsl); err != nil {
		return nil, nil, &RejectionError{Stage: StageSchema, Err: &schema.SchemaError{Err: err}}
	}

	if err := policy.Gate(dsl, o.catalog); err != nil {
		return nil, nil, &RejectionError{Stage: StagePolicy, Err: err}
	}
	plan, err := o.compiler.CompilePlan(dsl)
	if err != nil {
		return nil, nil, &RejectionError{Stage: StageCompile, Err: err}
	}
	if err := policy.AuditPlan(plan); err != nil {
		return nil, nil, &RejectionError{Stage: StageAudit, Err: err}
	}
	return dsl, plan, nil
}

// Submit validates, gates, compiles and audits payload (a JSON or YAML
// ToDoDSL), persists the job record and starts execution in the
// background. It returns as soon as the job is durably recorded.
func (o *Orchestrator) Submit(ctx context.Context, payload []byte) (string, error) {
	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return "", ErrShuttingDown
	}
	o.wg.Add(1)
	o.mu.Unlock()
	started := false
	defer func() {
		if !started {
			o.wg.Done()
		}
	}()

	dsl, plan, err := o.Plan(payload)
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			o.metrics.Submitted(rej.Stage)
			o.logger.Warn("job rejected", zap.String("stage", rej.Stage), zap.Error(rej.Err))
		}
		return "", err
	}

	j := newJob(dsl, plan, o.now())
	if err := o.registry.Reserve(j); err != nil {
		o.metrics.Submitted("conflict")
		o.logger.Warn("job rejected", zap.String("job_id", dsl.JobID), zap.Error(err))
		return "", err
	}

	if err := o.persist(ctx, store.KindJob, j.ID, 0, j.Record()); err != nil {
		if errors.Is(err, store.ErrExists) {
			o.registry.tombstone(j.ID)
			o.metrics.Submitted("conflict")
			return "", &ConflictError{JobID: j.ID}
		}
		o.registry.release(j.ID)
		return "", fmt.Errorf("persist job %s: %w", j.ID, err)
	}

	o.metrics.Submitted("accepted")
	o.logger.Info("job submitted",
		zap.String("job_id", j.ID),
		zap.String("host", dsl.Target.Host),
		zap.String("profile", dsl.Profile),
		zap.Int("steps", len(plan.Steps)))

	started = true
	go o.run(j)
	return j.ID, nil
}

// Job returns a snapshot of the job's record
func (o *Orchestrator) Job(id string) (model.JobRecord, error) {
	j, err := o.registry.Get(id)
	if err != nil {
		return model.JobRecord{}, err
	}
	return j.Record(), nil
}

// Events replays the job's events from the beginning and follows live
// events until the verdict
func (o *Orchestrator) Events(ctx context.Context, id string) (<-chan model.Event, error) {
	j, err := o.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return j.events.Subscribe(ctx), nil
}

// Result returns the verdict of a terminal job, or ErrNotReady
func (o *Orchestrator) Result(id string) (*model.VerificationResult, error) {
	j, err := o.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return j.Result()
}

// Wait blocks until the job is terminal or ctx is done
func (o *Orchestrator) Wait(ctx context.Context, id string) (*model.VerificationResult, error) {
	j, err := o.registry.Get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-j.Done():
		return j.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Purge forgets a terminal job. Its id stays reserved.
func (o *Orchestrator) Purge(id string) error {
	return o.registry.Purge(id)
}

// Shutdown stops accepting submissions and waits for running jobs. If ctx
// expires first, running jobs are canceled and ctx's error is returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.draining = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return ctx.Err()
	}
}

// persist writes one record; payload is JSON encoded
func (o *Orchestrator) persist(ctx context.Context, kind, jobID string, seq int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	return o.store.Write(ctx, store.Record{JobID: jobID, Seq: seq, Kind: kind, Payload: data})
}
