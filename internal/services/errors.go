package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline error taxonomy. Every stage failure carries exactly one of the
// domain markers plus, where useful, one of the generic markers below.
var (
	ErrSource        = errors.New("source error")
	ErrTranscription = errors.New("transcription error")
	ErrManifest      = errors.New("manifest error")
	ErrCutJob        = errors.New("cut job error")
	ErrUpload        = errors.New("upload error")
	ErrNotification  = errors.New("notification error")
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether err describes a condition that a later
// re-invocation may clear on its own (timeouts and transient failures).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransient)
}

// Kind returns a short label for the domain marker carried by err, or
// "internal" when none is present.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSource):
		return "source"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrManifest):
		return "manifest"
	case errors.Is(err, ErrCutJob):
		return "cut_job"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrNotification):
		return "notification"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "internal"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
