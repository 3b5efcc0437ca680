package services_test

import (
	"errors"
	"strings"
	"testing"

	"clipper/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrCutJob, "cut", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrCutJob) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"cut", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRetryable(t *testing.T) {
	timeout := services.Wrap(services.ErrTranscription, "transcribe", "poll", "gave up", services.ErrTimeout)
	if !services.Retryable(timeout) {
		t.Fatal("expected timeout to be retryable")
	}
	if !errors.Is(timeout, services.ErrTranscription) {
		t.Fatal("expected transcription marker to survive")
	}
	manifestErr := services.Wrap(services.ErrManifest, "cut", "load", "clip 2", nil)
	if services.Retryable(manifestErr) {
		t.Fatal("manifest errors are not retryable")
	}
	if services.Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
}

func TestKind(t *testing.T) {
	cases := map[string]error{
		"source":   services.Wrap(services.ErrSource, "ingest", "fetch", "", nil),
		"manifest": services.Wrap(services.ErrManifest, "cut", "load", "", nil),
		"upload":   services.Wrap(services.ErrUpload, "upload", "put", "", errors.New("x")),
		"internal": errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}
