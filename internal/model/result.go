package model

// Output caps applied to every RawResult
const (
	StdoutCap = 262144
	StderrCap = 131072
)

// Synthesized exit codes for steps that never produced a remote exit status
const (
	ExitTimeout      = 124
	ExitTransportErr = 255
)

// RawResult is the captured outcome of one remote command
type RawResult struct {
	StepID     string `json:"step_id"`
	ExitCode   int    `json:"exit_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	DurationMS int64  `json:"duration_ms"`
	Truncated  bool   `json:"truncated"`
}

// ParsedResult holds the structured facts extracted from a RawResult
type ParsedResult struct {
	StepID string                 `json:"step_id"`
	Parsed map[string]interface{} `json:"parsed"`
	OK     *bool                  `json:"ok,omitempty"`
	Notes  string                 `json:"notes,omitempty"`
}

// Verdict status values
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
	StatusPartial = "PARTIAL"
)

// StepOutcome is the per-step judgment recorded in a VerificationResult
type StepOutcome struct {
	ID       string                 `json:"id"`
	OK       bool                   `json:"ok"`
	Notes    string                 `json:"notes"`
	ExitCode int                    `json:"exit_code"`
	Parsed   map[string]interface{} `json:"parsed,omitempty"`
}

// VerificationResult is the terminal judgment of a job
type VerificationResult struct {
	Status   string              `json:"status"`
	Summary  string              `json:"summary"`
	PerStep  []StepOutcome       `json:"per_step"`
	Evidence []map[string]string `json:"evidence"`
}
