package notifications

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// Event names one pipeline transition reported to notification channels.
type Event string

const (
	EventStageStarted           Event = "stage_started"
	EventStageCompleted         Event = "stage_completed"
	EventTranscriptionCompleted Event = "transcription_completed"
	EventClipsSummary           Event = "clips_summary"
	EventCutJobCompleted        Event = "cut_job_completed"
	EventCutJobFailed           Event = "cut_job_failed"
	EventClipCompleted          Event = "clip_completed"
	EventDraftReady             Event = "draft_ready"
	EventPipelinePaused         Event = "pipeline_paused"
	EventUploadCompleted        Event = "upload_completed"
	EventRunCompleted           Event = "run_completed"
	EventError                  Event = "error"
	EventTest                   Event = "test"
)

// Payload keys shared by producers and transports.
const (
	KeyVideoName      = "video_name"
	KeyStage          = "stage"
	KeyDetail         = "detail"
	KeyPath           = "path"
	KeyCaption        = "caption"
	KeyError          = "error"
	KeyRunID          = "run_id"
	KeyClipID         = "clip_id"
	KeyVariant        = "variant"
	KeyTitle          = "title"
	KeyScore          = "score"
	KeyAttempts       = "attempts"
	KeyLink           = "link"
	KeyCount          = "count"
	KeyFailed         = "failed"
	KeyDocuments      = "documents"
	KeySummary        = "summary"
	KeyDuration       = "duration_seconds"
	KeyWordCount      = "word_count"
	KeyUtterances     = "utterances"
	KeySpeakers       = "speakers"
	KeyManifestPath   = "manifest_path"
	KeyClipLines      = "clip_lines"
	KeyTargetMode     = "mode"
	KeyUploadProvider = "provider"
)

// Payload carries event details. Values are strings, numbers, or string
// slices; transports read them through the typed accessors.
type Payload map[string]any

func (p Payload) clone() Payload {
	if p == nil {
		return Payload{}
	}
	out := make(Payload, len(p))
	for k, v := range p {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// String returns the value at key rendered as text.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Int returns the integer at key, or 0.
func (p Payload) Int(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Float returns the number at key, or 0.
func (p Payload) Float(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Strings returns the string slice at key.
func (p Payload) Strings(key string) []string {
	if v, ok := p[key].([]string); ok {
		return v
	}
	return nil
}

// Notifier delivers one event to an external channel.
type Notifier interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Notifier.
func (Noop) Publish(context.Context, Event, Payload) error { return nil }

// Fanout publishes to every notifier and joins their errors.
type Fanout []Notifier

// Publish implements Notifier.
func (f Fanout) Publish(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(ctx, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
