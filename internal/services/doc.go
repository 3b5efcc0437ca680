// Package services defines shared utilities consumed by the pipeline stage
// handlers and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp the work directory slug, stage names, run
//     identifiers and clip ids for logging.
//   - Structured error markers (source, transcription, manifest, cut job,
//     upload, notification) plus the Wrap helper that keeps both the marker
//     and the underlying cause visible to errors.Is.
//
// Integrations with remote providers live in subpackages (assemblyai, drive,
// objectstore).
package services
