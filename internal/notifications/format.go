package notifications

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var stageLabels = map[string]string{
	"ingest":     "Ingest",
	"transcribe": "Transcription",
	"cut":        "Cutting",
	"draft":      "Draft cut",
	"upload":     "Upload",
}

var titleCaser = cases.Title(language.English)

// StageLabel returns the display name used in messages for a stage key.
func StageLabel(stage string) string {
	stage = strings.TrimSpace(stage)
	if label, ok := stageLabels[stage]; ok {
		return label
	}
	if stage == "" {
		return "Pipeline"
	}
	return titleCaser.String(strings.ReplaceAll(stage, "_", " "))
}

// FormatClock renders seconds as M:SS, or H:MM:SS past an hour.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ClipLine renders one manifest entry for the clip summary.
func ClipLine(id int, score float64, title string, start, end float64, platform string) string {
	if platform == "" {
		platform = "?"
	}
	return fmt.Sprintf("#%d [%g/10] %s %s–%s (%.0fs) | %s",
		id, score, title, FormatClock(start), FormatClock(end), end-start, platform)
}

// plainMessage builds the title and body shared by text transports.
func plainMessage(event Event, payload Payload) (title, body string) {
	video := payload.String(KeyVideoName)
	stage := StageLabel(payload.String(KeyStage))
	detail := payload.String(KeyDetail)

	var lines []string
	switch event {
	case EventStageStarted:
		title = stage + " started"
	case EventStageCompleted:
		title = stage + " complete"
	case EventTranscriptionCompleted:
		title = "Transcription complete"
		lines = append(lines, fmt.Sprintf("Duration: %s | Words: %d | Utterances: %d | Speakers: %d",
			FormatClock(payload.Float(KeyDuration)), payload.Int(KeyWordCount),
			payload.Int(KeyUtterances), payload.Int(KeySpeakers)))
	case EventClipsSummary:
		lines = payload.Strings(KeyClipLines)
		title = fmt.Sprintf("%d clips identified", len(lines))
	case EventCutJobCompleted:
		title = fmt.Sprintf("Clip %d (%s) cut", payload.Int(KeyClipID), payload.String(KeyVariant))
		if name := filepath.Base(payload.String(KeyPath)); name != "." {
			lines = append(lines, name)
		}
	case EventCutJobFailed:
		title = fmt.Sprintf("Clip %d (%s) failed", payload.Int(KeyClipID), payload.String(KeyVariant))
		lines = append(lines, fmt.Sprintf("After %d attempts: %s", payload.Int(KeyAttempts), payload.String(KeyError)))
	case EventClipCompleted:
		title = fmt.Sprintf("Clip %d ready", payload.Int(KeyClipID))
		lines = append(lines, payload.String(KeyTitle))
	case EventDraftReady:
		title = "Draft clip ready"
		lines = append(lines, payload.String(KeyTitle))
	case EventPipelinePaused:
		title = "Waiting for clip manifest"
	case EventUploadCompleted:
		title = "Upload complete"
		if link := payload.String(KeyLink); link != "" {
			lines = append(lines, link)
		}
	case EventRunCompleted:
		title = "Run complete"
		if failed := payload.Int(KeyFailed); failed > 0 {
			title = fmt.Sprintf("Run complete with %d failures", failed)
		}
		if summary := payload.String(KeySummary); summary != "" {
			lines = append(lines, summary)
		}
	case EventError:
		title = stage + " failed"
		lines = append(lines, payload.String(KeyError))
	case EventTest:
		title = "Test notification"
		lines = append(lines, "Notification channel is working")
	default:
		title = string(event)
	}
	if detail != "" {
		lines = append(lines, detail)
	}
	body = strings.Join(nonEmpty(append([]string{video}, lines...)), "\n")
	return title, body
}

func nonEmpty(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
