// Package stage defines the contract between the workflow manager and the
// per-stage handlers (ingest, transcribe, cut, upload).
package stage
