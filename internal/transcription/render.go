package transcription

import (
	"fmt"
	"strings"

	"clipper/internal/notifications"
	"clipper/internal/services/assemblyai"
)

// RenderSRT builds an SRT document with one cue per utterance, each prefixed
// by its speaker label.
func RenderSRT(t assemblyai.Transcript) string {
	var b strings.Builder
	for i, u := range t.Utterances {
		fmt.Fprintf(&b, "%d\n%s --> %s\n[Speaker %s] %s\n\n",
			i+1, srtTimestamp(u.Start), srtTimestamp(u.End), speakerLabel(u.Speaker), strings.TrimSpace(u.Text))
	}
	return b.String()
}

// RenderMarkdown builds the readable transcript: a header with duration and
// speaker count, then one timestamped paragraph per utterance.
func RenderMarkdown(t assemblyai.Transcript, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Transcript: %s\n\n", title)
	fmt.Fprintf(&b, "**Duration:** %s\n", notifications.FormatClock(t.DurationSeconds()))
	fmt.Fprintf(&b, "**Speakers:** %d\n\n---\n\n", len(t.Speakers()))
	for _, u := range t.Utterances {
		fmt.Fprintf(&b, "**[%s] Speaker %s:** %s\n\n",
			notifications.FormatClock(float64(u.Start)/1000), speakerLabel(u.Speaker), strings.TrimSpace(u.Text))
	}
	return b.String()
}

// srtTimestamp renders milliseconds as HH:MM:SS,mmm.
func srtTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	s := (ms % 60_000) / 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

func speakerLabel(speaker string) string {
	if strings.TrimSpace(speaker) == "" {
		return "?"
	}
	return speaker
}
