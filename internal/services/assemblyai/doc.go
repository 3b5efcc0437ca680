// Package assemblyai is a small client for the AssemblyAI speech-to-text
// API: upload audio, submit a transcript request with speaker labels, and
// poll until it completes.
//
// Transient HTTP failures (429 and 5xx) are retried with exponential
// backoff. Waiting longer than Config.Timeout returns an error marked
// services.ErrTimeout so callers can treat it as retryable.
package assemblyai
