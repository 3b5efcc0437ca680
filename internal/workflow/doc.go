// Package workflow drives one video through the clipper pipeline.
//
// The Manager resolves the source, takes the work directory lock, opens the
// state store, and then walks the selected mode's stage plan (ingest,
// transcribe, cut, upload) in order. Every stage is asked whether its outputs
// already exist and verify; satisfied stages are skipped, so re-running any
// mode after a crash, a failure or an edit to the manifest picks up exactly
// where the artifacts on disk leave off.
//
// Cutting needs a validated clip manifest produced outside clipper. When none
// exists the run ends paused rather than failed; the operator writes the
// manifest and re-runs.
package workflow
