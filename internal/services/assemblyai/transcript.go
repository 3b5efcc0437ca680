package assemblyai

import "sort"

// Transcript status values reported by the API.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Word is one recognized word. Times are milliseconds.
type Word struct {
	Text       string  `json:"text"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance is one uninterrupted stretch of speech by a single speaker.
type Utterance struct {
	Speaker string `json:"speaker"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Text    string `json:"text"`
}

// Transcript is the provider's result document.
type Transcript struct {
	ID            string      `json:"id"`
	Status        string      `json:"status"`
	Error         string      `json:"error,omitempty"`
	Text          string      `json:"text"`
	AudioDuration float64     `json:"audio_duration,omitempty"`
	Words         []Word      `json:"words"`
	Utterances    []Utterance `json:"utterances"`
}

// DurationSeconds is the end of the last word, falling back to the reported
// audio duration.
func (t Transcript) DurationSeconds() float64 {
	if n := len(t.Words); n > 0 {
		return float64(t.Words[n-1].End) / 1000
	}
	return t.AudioDuration
}

// Speakers returns the distinct speaker labels in order.
func (t Transcript) Speakers() []string {
	seen := map[string]struct{}{}
	for _, u := range t.Utterances {
		if u.Speaker != "" {
			seen[u.Speaker] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
