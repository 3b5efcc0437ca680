// Package cutting renders manifest clips into horizontal and vertical mp4
// files.
//
// A Scheduler runs one job per (clip, variant) on a fixed pool of workers.
// Each attempt is bounded by its own timeout and retried after a delay; the
// outcome of every job is written to the state store before the matching
// notification is queued, so a crash never reports work that a resumed run
// cannot see. Jobs whose recorded output still verifies on disk are skipped.
//
// Handler adapts the scheduler to the stage.Handler contract, including the
// draft mode that cuts only the top-scored clip.
package cutting
