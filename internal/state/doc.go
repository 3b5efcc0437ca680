// Package state persists one video's pipeline progress in a SQLite file that
// lives inside the video's work directory.
//
// PipelineState records the furthest stage reached, the fingerprint of each
// artifact a stage produced, per-(clip, variant) cut progress, and upload
// outcomes. Stages are only ever advanced; callers that find an artifact
// missing or changed decide where to resume but never rewrite the recorded
// stage backwards.
//
// All writes go through Store.Update, which serializes read-modify-write
// cycles behind a mutex and a transaction so concurrent cut workers cannot
// lose each other's progress. Schema changes bump schemaVersion; an existing
// work directory with an older schema must be cleared.
package state
