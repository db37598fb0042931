package job

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for job ids that were never submitted or
	// have been purged
	ErrNotFound = errors.New("job not found")
	// ErrNotReady is returned when a result is requested before the job
	// reached a terminal status
	ErrNotReady = errors.New("job result not ready")
	// ErrShuttingDown is returned by Submit after Shutdown has begun
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// Submission stages that can reject a DSL
const (
	StageSchema  = "schema"
	StagePolicy  = "policy"
	StageCompile = "compile"
	StageAudit   = "audit"
)

// RejectionError reports the stage at which a submission was refused.
// No remote command runs for a rejected submission.
type RejectionError struct {
	Stage string
	Err   error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected at %s: %v", e.Stage, e.Err)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// ConflictError reports a job id that is already in use or was used before
type ConflictError struct {
	JobID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("job id %q already exists", e.JobID)
}
