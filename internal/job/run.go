package job

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sourceplane/hostcheck/internal/critic"
	"github.com/sourceplane/hostcheck/internal/metrics"
	"github.com/sourceplane/hostcheck/internal/model"
	"github.com/sourceplane/hostcheck/internal/policy"
	"github.com/sourceplane/hostcheck/internal/runner"
	"github.com/sourceplane/hostcheck/internal/store"
)

const (
	storeTimeout = 5 * time.Second
	// evidenceStderrLen bounds the stderr excerpt kept per failed step
	evidenceStderrLen = 512
)

// statusRecord is the payload of a persisted status transition
type statusRecord struct {
	Status model.JobStatus `json:"status"`
	At     time.Time       `json:"at"`
}

// run drives one job from QUEUED to a terminal status
func (o *Orchestrator) run(j *Job) {
	defer o.wg.Done()
	defer close(j.done)

	log := o.logger.With(zap.String("job_id", j.ID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r))
			o.finish(j, &model.VerificationResult{
				Status:   model.StatusFailed,
				Summary:  fmt.Sprintf("Internal error: %v", r),
				PerStep:  []model.StepOutcome{},
				Evidence: []map[string]string{},
			}, log)
		}
	}()

	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-o.ctx.Done():
		o.finish(j, &model.VerificationResult{
			Status:   model.StatusFailed,
			Summary:  "Job canceled before execution.",
			PerStep:  []model.StepOutcome{},
			Evidence: []map[string]string{},
		}, log)
		return
	}

	ctx := o.ctx
	dsl, plan := j.snapshot()
	sink := runner.SinkFunc(func(ev model.Event) { o.emit(j, ev, log) })

	o.advance(j, model.JobPrechecks, log)
	o.emit(j, model.PlanPreviewEvent(plan), log)

	o.advance(j, model.JobExecuting, log)
	raw := o.runner.ExecutePlan(ctx, dsl.Target.Host, plan, sink)
	for _, rr := range raw {
		o.observe(rr)
	}

	o.advance(j, model.JobPostchecks, log)
	res := o.postchecks(ctx, j, dsl, plan, raw, sink, log)

	o.advance(j, model.JobJudging, log)
	o.finish(j, res, log)
}

// postchecks parses and validates every step, offers each failure to the
// critic in plan order until one patch is applied, and judges the outcomes
func (o *Orchestrator) postchecks(ctx context.Context, j *Job, dsl *model.ToDoDSL, plan *model.ExecPlan, raw []model.RawResult, sink runner.Sink, log *zap.Logger) *model.VerificationResult {
	outcomes := make([]model.StepOutcome, 0, len(raw)+1)
	var failures []critic.Failure
	for i, rr := range raw {
		step := plan.Steps[i]
		oc := o.judgeStep(dsl, step, rr, log)
		outcomes = append(outcomes, oc)
		if !oc.OK {
			failures = append(failures, critic.Failure{
				StepID:   step.ID,
				Action:   actionOf(dsl, step.ID),
				Parser:   step.Parser,
				ExitCode: rr.ExitCode,
				Notes:    oc.Notes,
			})
		}
	}

	var rule string
	for _, failure := range failures {
		patched, step, name := o.proposePatch(dsl, failure, log)
		if patched == nil {
			continue
		}
		j.appendStep(patched, step)
		rr := o.runner.ExecuteStep(ctx, patched.Target.Host, step, sink)
		o.observe(rr)
		raw = append(raw, rr)
		outcomes = append(outcomes, o.judgeStep(patched, step, rr, log))
		rule = name
		break
	}

	return judge(outcomes, raw, rule)
}

// judgeStep parses one raw result and applies the step's validator. A step
// without a validator is ok.
func (o *Orchestrator) judgeStep(dsl *model.ToDoDSL, step model.ExecStep, rr model.RawResult, log *zap.Logger) model.StepOutcome {
	var notes []string
	parsed, err := o.parsers.Parse(step.Parser, rr.Stdout)
	if err != nil {
		log.Warn("parser unavailable", zap.String("step_id", step.ID), zap.Error(err))
		notes = append(notes, err.Error())
	}

	oc := model.StepOutcome{ID: step.ID, OK: true, ExitCode: rr.ExitCode, Parsed: parsed}
	if step.Validator != "" {
		ok, note, verr := o.validators.Validate(step.Validator, parsed, dsl.Context)
		if verr != nil {
			log.Warn("validator unavailable", zap.String("step_id", step.ID), zap.Error(verr))
		}
		oc.OK = ok
		if note != "" {
			notes = append(notes, note)
		}
	}
	oc.Notes = strings.Join(notes, "; ")
	return oc
}

// proposePatch asks the critic for one extra step and puts it through the
// same gate, compile and audit checks as a submission
func (o *Orchestrator) proposePatch(dsl *model.ToDoDSL, f critic.Failure, log *zap.Logger) (*model.ToDoDSL, model.ExecStep, string) {
	patch := o.critic.Propose(dsl, f)
	if patch == nil || len(patch.Added) == 0 {
		return nil, model.ExecStep{}, ""
	}
	added := patch.Added[0]
	patched := dsl.Clone()
	patched.Steps = append(patched.Steps, added)

	reject := func(stage string, err error) (*model.ToDoDSL, model.ExecStep, string) {
		log.Warn("critic patch rejected",
			zap.String("rule", patch.Rule),
			zap.String("stage", stage),
			zap.Error(err))
		return nil, model.ExecStep{}, ""
	}

	profile, err := o.catalog.MustProfile(patched.Profile)
	if err != nil {
		return reject(StagePolicy, err)
	}
	if err := policy.GateStep(added, profile, o.catalog); err != nil {
		return reject(StagePolicy, err)
	}
	step, err := o.compiler.CompileStep(patched, added)
	if err != nil {
		return reject(StageCompile, err)
	}
	if err := policy.AuditStep(step); err != nil {
		return reject(StageAudit, err)
	}

	log.Info("critic patch applied",
		zap.String("rule", patch.Rule),
		zap.String("failed_step", f.StepID),
		zap.String("step_id", step.ID))
	return patched, step, patch.Rule
}

// judge combines per-step outcomes into the verdict. SUCCESS requires every
// step to be ok.
func judge(outcomes []model.StepOutcome, raw []model.RawResult, rule string) *model.VerificationResult {
	res := &model.VerificationResult{
		Status:   model.StatusSuccess,
		Summary:  "All criteria passed.",
		PerStep:  outcomes,
		Evidence: []map[string]string{},
	}
	for i, oc := range outcomes {
		if oc.OK {
			continue
		}
		res.Status = model.StatusFailed
		res.Summary = "One or more criteria failed."
		ev := map[string]string{
			"step_id":   oc.ID,
			"exit_code": strconv.Itoa(oc.ExitCode),
			"notes":     oc.Notes,
		}
		if i < len(raw) && raw[i].Stderr != "" {
			ev["stderr"] = excerpt(raw[i].Stderr, evidenceStderrLen)
		}
		res.Evidence = append(res.Evidence, ev)
	}
	if rule != "" {
		res.Evidence = append(res.Evidence, map[string]string{
			"step_id":     outcomes[len(outcomes)-1].ID,
			"critic_rule": rule,
		})
	}
	return res
}

// finish stores the result, moves the job to its terminal status and
// appends the verdict
func (o *Orchestrator) finish(j *Job, res *model.VerificationResult, log *zap.Logger) {
	j.setResult(res)
	o.write(store.KindResult, j.ID, 0, res, log)

	status := model.JobFailed
	if res.Status == model.StatusSuccess {
		status = model.JobDone
	}
	o.advance(j, status, log)
	o.emit(j, model.VerdictEvent(res.Status, res.Summary), log)

	o.metrics.Completed(string(status))
	log.Info("job finished",
		zap.String("status", string(status)),
		zap.String("verdict", res.Status),
		zap.Int("steps", len(res.PerStep)))
}

func (o *Orchestrator) advance(j *Job, next model.JobStatus, log *zap.Logger) {
	now := o.now()
	seq, err := j.transition(next, now)
	if err != nil {
		log.Error("status transition refused", zap.Error(err))
		return
	}
	o.write(store.KindStatus, j.ID, seq, statusRecord{Status: next, At: now}, log)
}

func (o *Orchestrator) emit(j *Job, ev model.Event, log *zap.Logger) {
	ev, err := j.events.Append(ev)
	if err != nil {
		log.Debug("event dropped", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	o.write(store.KindEvent, j.ID, int(ev.Seq), ev, log)
}

// write persists a record produced during execution. Failures are logged;
// they never abort the job.
func (o *Orchestrator) write(kind, jobID string, seq int, payload interface{}, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := o.persist(ctx, kind, jobID, seq, payload); err != nil {
		log.Warn("persist failed", zap.String("kind", kind), zap.Int("seq", seq), zap.Error(err))
	}
}

func (o *Orchestrator) observe(rr model.RawResult) {
	o.metrics.ObserveStep(metrics.StepResult(rr.ExitCode), time.Duration(rr.DurationMS)*time.Millisecond)
}

func actionOf(dsl *model.ToDoDSL, stepID string) string {
	for _, s := range dsl.Steps {
		if s.ID == stepID {
			return s.Action
		}
	}
	return ""
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
