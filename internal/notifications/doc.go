// Package notifications reports pipeline events to ntfy and Telegram without
// ever gating pipeline progress.
//
// Producers call Sink.Send, which enqueues on a bounded channel and returns
// at once; a single goroutine delivers each event under its own timeout and
// logs failures instead of returning them. Close drains the queue until its
// context ends.
//
// Transports implement Notifier. Ntfy sends short text pushes and skips
// file-carrying events. Telegram sends HTML messages, clips as videos (with a
// downscaled preview or a document fallback for oversized files) and
// transcripts or manifests as documents.
package notifications
