package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipper/internal/services"
)

const twoClipJSON = `{
  "clips": [
    {"id": 1, "title": "Opening Hook!", "start_time": 10.0, "end_time": 25.0, "virality_score": 7.5, "platform": "tiktok", "category": "humor"},
    {"id": 2, "title": "The Big Reveal", "start_time": 100.0, "end_time": 220.0, "virality_score": 9, "crop_x": 320, "platform": "youtube_shorts"}
  ]
}`

func TestParseJSONManifest(t *testing.T) {
	m, err := Parse([]byte(twoClipJSON), "json", Limits{SourceDuration: 3600, MaxClipSeconds: 600})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m.Clips) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(m.Clips))
	}
	if got := m.Clips[0].TitleSlug(); got != "opening_hook" {
		t.Fatalf("unexpected slug %q", got)
	}
	if m.Clips[1].CropX == nil || *m.Clips[1].CropX != 320 {
		t.Fatalf("crop_x not decoded: %+v", m.Clips[1].CropX)
	}
	if m.Clips[0].CropX != nil {
		t.Fatal("expected centre crop for clip 1")
	}
	if d := m.Clips[1].Duration(); d != 120 {
		t.Fatalf("unexpected duration %v", d)
	}
	if len(m.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", m.Warnings)
	}
	top, ok := m.Top()
	if !ok || top.ID != 2 {
		t.Fatalf("expected clip 2 as top, got %+v", top)
	}
}

func TestParseYAMLManifest(t *testing.T) {
	doc := `
clips:
  - id: 3
    title: Late Night Story
    start_time: 5
    end_time: 12.5
    platform: mastodon
    category: Story
    tags: [night, story]
`
	m, err := Parse([]byte(doc), "yaml", Limits{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	clip := m.Clips[0]
	if clip.ID != 3 || clip.EndTime != 12.5 || len(clip.Tags) != 2 {
		t.Fatalf("unexpected clip %+v", clip)
	}
	if clip.Category != "story" {
		t.Fatalf("expected normalized category, got %q", clip.Category)
	}
	if len(m.Warnings) != 1 || m.Warnings[0].Field != "platform" || m.Warnings[0].Value != "mastodon" {
		t.Fatalf("expected platform warning, got %v", m.Warnings)
	}
}

func TestParseRejectsInvalidManifests(t *testing.T) {
	tests := []struct {
		name   string
		format string
		doc    string
		clipID int
		want   string
	}{
		{
			name:   "inverted times",
			doc:    `{"clips":[{"id":1,"title":"a","start_time":0,"end_time":5},{"id":2,"title":"b","start_time":30,"end_time":20}]}`,
			clipID: 2,
			want:   "must be after start_time",
		},
		{
			name:   "duplicate id",
			doc:    `{"clips":[{"id":4,"title":"a","start_time":0,"end_time":5},{"id":4,"title":"b","start_time":6,"end_time":9}]}`,
			clipID: 4,
			want:   "duplicate id",
		},
		{
			name:   "beyond source",
			doc:    `{"clips":[{"id":1,"title":"a","start_time":3500,"end_time":3700}]}`,
			clipID: 1,
			want:   "exceeds source duration",
		},
		{
			name:   "too long",
			doc:    `{"clips":[{"id":1,"title":"a","start_time":0,"end_time":900}]}`,
			clipID: 1,
			want:   "ceiling",
		},
		{
			name:   "negative start",
			doc:    `{"clips":[{"id":1,"title":"a","start_time":-1,"end_time":9}]}`,
			clipID: 1,
			want:   "negative",
		},
		{
			name:   "missing end",
			doc:    `{"clips":[{"id":7,"title":"a","start_time":1}]}`,
			clipID: 7,
			want:   "missing end_time",
		},
		{
			name:   "punctuation title",
			doc:    `{"clips":[{"id":8,"title":"?!...","start_time":1,"end_time":2}]}`,
			clipID: 8,
			want:   "filesystem-safe",
		},
		{
			name:   "nan times",
			format: "yaml",
			doc:    "clips:\n  - {id: 1, title: Hook, start_time: .nan, end_time: .nan}\n",
			clipID: 1,
			want:   "start_time NaN is not a finite number",
		},
		{
			name:   "infinite end",
			format: "yaml",
			doc:    "clips:\n  - {id: 3, title: Hook, start_time: 1, end_time: .inf}\n",
			clipID: 3,
			want:   "end_time +Inf is not a finite number",
		},
		{
			name:   "nan score",
			format: "yaml",
			doc:    "clips:\n  - {id: 6, title: Hook, start_time: 1, end_time: 5, virality_score: .nan}\n",
			clipID: 6,
			want:   "virality_score NaN",
		},
		{
			name: "missing id",
			doc:  `{"clips":[{"title":"a","start_time":1,"end_time":2}]}`,
			want: "entry 1: missing id",
		},
		{
			name: "empty",
			doc:  `{"clips":[]}`,
			want: "no clips",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			format := tc.format
			if format == "" {
				format = "json"
			}
			m, err := Parse([]byte(tc.doc), format, Limits{SourceDuration: 3600, MaxClipSeconds: 600})
			if err == nil {
				t.Fatalf("expected rejection, got %d clips", len(m.Clips))
			}
			if m != nil {
				t.Fatal("expected no manifest on rejection")
			}
			if !errors.Is(err, services.ErrManifest) {
				t.Fatalf("expected manifest marker, got %v", err)
			}
			var merr *ManifestError
			if !errors.As(err, &merr) {
				t.Fatalf("expected ManifestError, got %T", err)
			}
			if merr.ClipID != tc.clipID {
				t.Fatalf("expected clip id %d, got %d", tc.clipID, merr.ClipID)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q missing %q", err.Error(), tc.want)
			}
		})
	}
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"clips": [`), "json", Limits{})
	if !errors.Is(err, services.ErrManifest) {
		t.Fatalf("expected manifest error, got %v", err)
	}
}

func TestDiscoverPrefersJSONThenYAML(t *testing.T) {
	dir := t.TempDir()
	if _, err := Discover(dir, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	yamlPath := filepath.Join(dir, "video_clips.yaml")
	if err := os.WriteFile(yamlPath, []byte("clips: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Discover(dir, "")
	if err != nil || got != yamlPath {
		t.Fatalf("expected yaml manifest, got %q %v", got, err)
	}

	jsonPath := filepath.Join(dir, "video_clips.json")
	if err := os.WriteFile(jsonPath, []byte(twoClipJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = Discover(dir, "")
	if err != nil || got != jsonPath {
		t.Fatalf("expected json manifest, got %q %v", got, err)
	}

	explicit := filepath.Join(t.TempDir(), "custom.json")
	if _, err := Discover(dir, explicit); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing explicit path, got %v", err)
	}
}

func TestLoadSetsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talk_clips.json")
	if err := os.WriteFile(path, []byte(twoClipJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path, Limits{SourceDuration: 300})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Path != path {
		t.Fatalf("unexpected path %q", m.Path)
	}
	if ids := m.IDs(); len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, ok := m.Find(2); !ok {
		t.Fatal("expected clip 2")
	}
}

func TestTopBreaksTiesByStartThenID(t *testing.T) {
	m := &Manifest{Clips: []Clip{
		{ID: 5, ViralityScore: 8, StartTime: 120},
		{ID: 4, ViralityScore: 8, StartTime: 40},
		{ID: 2, ViralityScore: 8, StartTime: 40},
		{ID: 9, ViralityScore: 3, StartTime: 0},
	}}
	top, ok := m.Top()
	if !ok || top.ID != 2 {
		t.Fatalf("expected earliest-starting, lowest-id tied clip 2, got %+v", top)
	}
	if _, ok := (&Manifest{}).Top(); ok {
		t.Fatal("expected no top clip for empty manifest")
	}
}
