// Package transcription is the second pipeline stage. It extracts an MP3
// track, sends it to the transcription provider, and writes the SRT,
// Markdown and raw JSON renderings the identification step reads.
//
// The raw provider result is persisted before anything is rendered, so a
// crash after the provider call resumes from disk instead of resubmitting.
package transcription
