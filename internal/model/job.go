package model

import (
	"fmt"
	"time"
)

// JobStatus is a job's position in its lifecycle
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobPrechecks  JobStatus = "PRECHECKS"
	JobExecuting  JobStatus = "EXECUTING"
	JobPostchecks JobStatus = "POSTCHECKS"
	JobJudging    JobStatus = "JUDGING"
	JobDone       JobStatus = "DONE"
	JobFailed     JobStatus = "FAILED"
)

// IsTerminal reports whether the status is final
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobFailed
}

// CanTransition reports whether a job may move from s to next.
// Any non-terminal status may move to FAILED.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobFailed {
		return true
	}
	switch s {
	case JobQueued:
		return next == JobPrechecks
	case JobPrechecks:
		return next == JobExecuting
	case JobExecuting:
		return next == JobPostchecks
	case JobPostchecks:
		return next == JobJudging
	case JobJudging:
		return next == JobDone
	default:
		return false
	}
}

// Transition returns next if the move from s is allowed
func (s JobStatus) Transition(next JobStatus) (JobStatus, error) {
	if !s.CanTransition(next) {
		return s, fmt.Errorf("disallowed job transition: %s -> %s", s, next)
	}
	return next, nil
}

// EventType tags an entry of a job's event log
type EventType string

const (
	EventPlanPreview EventType = "plan_preview"
	EventStepStart   EventType = "step_start"
	EventStepResult  EventType = "step_result"
	EventVerdict     EventType = "verdict"
)

// Event is one entry of a job's append-only event log
type Event struct {
	Seq     uint64     `json:"seq"`
	Type    EventType  `json:"t"`
	StepID  string     `json:"id,omitempty"`
	Cmd     string     `json:"cmd,omitempty"`
	Exit    *int       `json:"exit,omitempty"`
	MS      *int64     `json:"ms,omitempty"`
	Steps   []ExecStep `json:"steps,omitempty"`
	Status  string     `json:"status,omitempty"`
	Summary string     `json:"summary,omitempty"`
}

// PlanPreviewEvent announces the compiled plan
func PlanPreviewEvent(plan *ExecPlan) Event {
	steps := make([]ExecStep, len(plan.Steps))
	copy(steps, plan.Steps)
	return Event{Type: EventPlanPreview, Steps: steps}
}

// StepStartEvent is emitted before a step runs
func StepStartEvent(id, cmd string) Event {
	return Event{Type: EventStepStart, StepID: id, Cmd: cmd}
}

// StepResultEvent is emitted after a step finishes
func StepResultEvent(id string, exit int, ms int64) Event {
	return Event{Type: EventStepResult, StepID: id, Exit: &exit, MS: &ms}
}

// VerdictEvent is the last event of every job
func VerdictEvent(status, summary string) Event {
	return Event{Type: EventVerdict, Status: status, Summary: summary}
}

// JobRecord is the durable snapshot of a job written by the orchestrator
type JobRecord struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	DSL       *ToDoDSL  `json:"dsl"`
	Plan      *ExecPlan `json:"plan"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
