// Package ingest is the first pipeline stage: it fetches the source video
// into the work directory, fingerprints it, and probes its duration.
package ingest
