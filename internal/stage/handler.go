package stage

import (
	"context"
	"log/slog"

	"clipper/internal/manifest"
	"clipper/internal/state"
	"clipper/internal/workdir"
)

// Name identifies a pipeline stage in logs, errors and notifications.
type Name string

const (
	Ingest     Name = "ingest"
	Transcribe Name = "transcribe"
	Cut        Name = "cut"
	Upload     Name = "upload"
)

// Input is everything a handler receives. State is a private copy the
// handler may mutate and return.
type Input struct {
	State    *state.PipelineState
	Layout   workdir.Layout
	Manifest *manifest.Manifest
	// Draft limits cutting to the top-scored clip and keeps the stage from
	// advancing.
	Draft bool
}

// Output is a handler's result. Advance is the stage recorded on success;
// StageNone leaves the recorded stage alone.
type Output struct {
	State    *state.PipelineState
	Advance  state.Stage
	Failures []Failure
	Summary  string
}

// Failure is one isolated unit of work (a cut job or an uploaded artifact)
// that did not succeed while the stage as a whole did.
type Failure struct {
	Unit    string
	ClipID  int
	Variant state.Variant
	Err     error
}

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Name() Name
	// Satisfied reports whether the stage's outputs already exist and verify.
	Satisfied(ctx context.Context, in Input) bool
	Execute(ctx context.Context, in Input) (Output, error)
	HealthCheck(ctx context.Context) Health
}

// LoggerAware handlers receive a logger stamped with stage context before
// Execute runs.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
