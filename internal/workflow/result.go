package workflow

import (
	"fmt"

	"clipper/internal/stage"
	"clipper/internal/state"
)

// Outcome summarizes how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomePartial   Outcome = "partial"
	OutcomePaused    Outcome = "paused"
	OutcomeFailed    Outcome = "failed"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// Result reports one run.
type Result struct {
	RunID     string
	Slug      string
	VideoName string
	Mode      Mode
	Outcome   Outcome
	// Recorded is the stage persisted in the state store after the run.
	Recorded state.Stage
	// Effective is the furthest stage whose artifacts verify on disk.
	Effective state.Stage
	Executed  []stage.Name
	Skipped   []stage.Name
	Failures  []stage.Failure
	Message   string
}

// ExitCode maps the outcome to the process exit status.
func (r Result) ExitCode() int {
	switch r.Outcome {
	case OutcomeFailed:
		return ExitFatal
	case OutcomePartial:
		return ExitPartial
	default:
		return ExitOK
	}
}

// StageError names the stage a run failed in.
type StageError struct {
	Stage stage.Name
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
