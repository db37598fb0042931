// Package job runs verification jobs: it admits DSL submissions through
// the safety checks, executes accepted plans in the background and records
// each job's events and final verdict.
package job

import (
	"sync"
	"time"

	"github.com/sourceplane/hostcheck/internal/model"
)

// Job is the in-memory state of one submission. Only the job's own
// background run mutates it; readers take snapshots.
type Job struct {
	ID     string
	events *EventLog
	done   chan struct{}

	mu        sync.RWMutex
	status    model.JobStatus
	dsl       *model.ToDoDSL
	plan      *model.ExecPlan
	result    *model.VerificationResult
	createdAt time.Time
	updatedAt time.Time
	// transitions counts persisted status records
	transitions int
}

func newJob(dsl *model.ToDoDSL, plan *model.ExecPlan, now time.Time) *Job {
	return &Job{
		ID:        dsl.JobID,
		events:    NewEventLog(),
		done:      make(chan struct{}),
		status:    model.JobQueued,
		dsl:       dsl,
		plan:      plan,
		createdAt: now,
		updatedAt: now,
	}
}

// Status returns the current lifecycle status
func (j *Job) Status() model.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Record returns a snapshot suitable for persistence or display
func (j *Job) Record() model.JobRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	plan := &model.ExecPlan{Steps: append([]model.ExecStep(nil), j.plan.Steps...)}
	return model.JobRecord{
		JobID:     j.ID,
		Status:    j.status,
		DSL:       j.dsl,
		Plan:      plan,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
}

// Result returns the verdict once the job is terminal
func (j *Job) Result() (*model.VerificationResult, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if !j.status.IsTerminal() || j.result == nil {
		return nil, ErrNotReady
	}
	return j.result, nil
}

// Events returns the event log
func (j *Job) Events() *EventLog {
	return j.events
}

// Done is closed after the verdict has been appended
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) transition(next model.JobStatus, now time.Time) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	status, err := j.status.Transition(next)
	if err != nil {
		return 0, err
	}
	j.status = status
	j.updatedAt = now
	j.transitions++
	return j.transitions, nil
}

// appendStep records a critic step. The plan is replaced, never mutated,
// so earlier snapshots stay valid.
func (j *Job) appendStep(dsl *model.ToDoDSL, step model.ExecStep) {
	j.mu.Lock()
	defer j.mu.Unlock()
	steps := make([]model.ExecStep, 0, len(j.plan.Steps)+1)
	steps = append(steps, j.plan.Steps...)
	j.plan = &model.ExecPlan{Steps: append(steps, step)}
	j.dsl = dsl
}

func (j *Job) setResult(res *model.VerificationResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
}

func (j *Job) snapshot() (*model.ToDoDSL, *model.ExecPlan) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.dsl, j.plan
}
