package workflow

import (
	"fmt"
	"strings"
)

// Mode selects which stages a run executes.
type Mode string

const (
	ModeFull           Mode = "full"
	ModeTranscribeOnly Mode = "transcribe-only"
	ModeDraft          Mode = "draft"
	ModeCutOnly        Mode = "cut-only"
	ModeCutAndUpload   Mode = "cut-and-upload"
	ModeUploadOnly     Mode = "upload-only"
)

// Modes lists every mode in help-text order.
var Modes = []Mode{ModeFull, ModeTranscribeOnly, ModeDraft, ModeCutOnly, ModeCutAndUpload, ModeUploadOnly}

// ParseMode accepts a mode name; the empty string means full.
func ParseMode(value string) (Mode, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ModeFull, nil
	}
	for _, m := range Modes {
		if string(m) == value {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", value)
}

// plan is the stage list a mode expands to. Ingest always runs.
type plan struct {
	transcribe bool
	cut        bool
	draft      bool
	upload     bool
}

func (m Mode) plan() plan {
	switch m {
	case ModeTranscribeOnly:
		return plan{transcribe: true}
	case ModeDraft:
		return plan{transcribe: true, cut: true, draft: true}
	case ModeCutOnly:
		return plan{transcribe: true, cut: true}
	case ModeCutAndUpload:
		return plan{transcribe: true, cut: true, upload: true}
	case ModeUploadOnly:
		return plan{upload: true}
	default:
		return plan{transcribe: true, cut: true, upload: true}
	}
}
