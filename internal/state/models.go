package state

import (
	"fmt"
	"sort"
	"time"
)

// Stage is the furthest pipeline phase whose output exists.
type Stage string

const (
	StageNone            Stage = ""
	StageDownloaded      Stage = "downloaded"
	StageTranscribed     Stage = "transcribed"
	StageClipsIdentified Stage = "clips_identified"
	StageCut             Stage = "cut"
	StageUploaded        Stage = "uploaded"
)

var stageOrder = []Stage{
	StageNone,
	StageDownloaded,
	StageTranscribed,
	StageClipsIdentified,
	StageCut,
	StageUploaded,
}

// Rank orders stages; unknown stages rank below StageNone.
func (s Stage) Rank() int {
	for idx, candidate := range stageOrder {
		if candidate == s {
			return idx
		}
	}
	return -1
}

// AtLeast reports whether s is other or further along.
func (s Stage) AtLeast(other Stage) bool {
	return s.Rank() >= other.Rank()
}

func (s Stage) String() string {
	if s == StageNone {
		return "new"
	}
	return string(s)
}

// ParseStage validates a persisted stage value.
func ParseStage(value string) (Stage, error) {
	stage := Stage(value)
	if stage.Rank() < 0 {
		return StageNone, fmt.Errorf("unknown stage %q", value)
	}
	return stage, nil
}

// Variant is one of the output framings cut per clip.
type Variant string

const (
	VariantHorizontal Variant = "horizontal"
	VariantVertical   Variant = "vertical"
)

// Logical artifact names recorded in PipelineState.Artifacts.
const (
	ArtifactVideo          = "video"
	ArtifactAudio          = "audio"
	ArtifactSubtitles      = "subtitles"
	ArtifactTranscript     = "transcript"
	ArtifactTranscriptData = "transcript_data"
	ArtifactManifest       = "manifest"
)

// SourceKind distinguishes where the video came from.
type SourceKind string

const (
	SourceLocal SourceKind = "local"
	SourceDrive SourceKind = "drive"
)

// SourceRef records how to re-fetch the video.
type SourceRef struct {
	Kind     SourceKind
	Locator  string
	FileID   string
	ParentID string
}

// Artifact is a file produced by a stage plus the fingerprint used to detect
// staleness.
type Artifact struct {
	Name       string
	Path       string
	Size       int64
	SHA256     string
	RecordedAt time.Time
}

// JobKey identifies one cut job.
type JobKey struct {
	ClipID  int
	Variant Variant
}

func (k JobKey) String() string {
	return fmt.Sprintf("clip %d (%s)", k.ClipID, k.Variant)
}

// CutRecord is the persisted progress of one (clip, variant) job.
type CutRecord struct {
	Key       JobKey
	Done      bool
	Attempts  int
	LastError string
	Output    Artifact
	UpdatedAt time.Time
}

// UploadRecord is the persisted outcome of uploading one artifact. SHA256 is
// the digest of the file that was sent, empty when it was too large to hash.
type UploadRecord struct {
	Name      string
	Path      string
	Link      string
	RemoteID  string
	SHA256    string
	Done      bool
	LastError string
	UpdatedAt time.Time
}

// PipelineState is the durable record of one video's progress.
type PipelineState struct {
	Slug           string
	VideoName      string
	Source         SourceRef
	Stage          Stage
	SourceDuration float64
	Artifacts      map[string]Artifact
	CutProgress    map[JobKey]CutRecord
	Uploads        map[string]UploadRecord
	FolderID       string
	FolderLink     string
	RunID          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// New returns an empty state for slug.
func New(slug string) *PipelineState {
	return &PipelineState{
		Slug:        slug,
		Artifacts:   map[string]Artifact{},
		CutProgress: map[JobKey]CutRecord{},
		Uploads:     map[string]UploadRecord{},
	}
}

// Advance moves the recorded stage forward; it never moves it back.
func (s *PipelineState) Advance(stage Stage) {
	if stage.Rank() > s.Stage.Rank() {
		s.Stage = stage
	}
}

// AdvanceStep moves the recorded stage to next only when next is the rung
// directly above the current one. It reports false when that would skip a
// rung; reaching an already recorded stage is a no-op that returns true.
func (s *PipelineState) AdvanceStep(next Stage) bool {
	if next.Rank() <= s.Stage.Rank() {
		return true
	}
	if next.Rank() != s.Stage.Rank()+1 {
		return false
	}
	s.Stage = next
	return true
}

// Clone returns a deep copy so stage handlers can mutate freely.
func (s *PipelineState) Clone() *PipelineState {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Artifacts = make(map[string]Artifact, len(s.Artifacts))
	for k, v := range s.Artifacts {
		cp.Artifacts[k] = v
	}
	cp.CutProgress = make(map[JobKey]CutRecord, len(s.CutProgress))
	for k, v := range s.CutProgress {
		cp.CutProgress[k] = v
	}
	cp.Uploads = make(map[string]UploadRecord, len(s.Uploads))
	for k, v := range s.Uploads {
		cp.Uploads[k] = v
	}
	return &cp
}

// Artifact returns the named artifact if recorded.
func (s *PipelineState) Artifact(name string) (Artifact, bool) {
	a, ok := s.Artifacts[name]
	return a, ok
}

// RecordArtifact stores a fresh fingerprint unless the recorded artifact
// already describes the same file, in which case the earlier record (and its
// RecordedAt) is kept. It reports whether the record changed.
func (s *PipelineState) RecordArtifact(a Artifact) bool {
	if prev, ok := s.Artifacts[a.Name]; ok && prev.Path == a.Path && prev.Size == a.Size && prev.SHA256 == a.SHA256 {
		return false
	}
	s.SetArtifact(a)
	return true
}

// SetArtifact records or replaces an artifact.
func (s *PipelineState) SetArtifact(a Artifact) {
	if s.Artifacts == nil {
		s.Artifacts = map[string]Artifact{}
	}
	s.Artifacts[a.Name] = a
}

// CutRecord returns the progress for key.
func (s *PipelineState) CutRecord(key JobKey) (CutRecord, bool) {
	rec, ok := s.CutProgress[key]
	return rec, ok
}

// SetCutRecord records job progress.
func (s *PipelineState) SetCutRecord(rec CutRecord) {
	if s.CutProgress == nil {
		s.CutProgress = map[JobKey]CutRecord{}
	}
	s.CutProgress[rec.Key] = rec
}

// SetUpload records an upload outcome.
func (s *PipelineState) SetUpload(rec UploadRecord) {
	if s.Uploads == nil {
		s.Uploads = map[string]UploadRecord{}
	}
	s.Uploads[rec.Name] = rec
}

// SortedCutRecords returns progress ordered by clip id, horizontal first.
func (s *PipelineState) SortedCutRecords() []CutRecord {
	out := make([]CutRecord, 0, len(s.CutProgress))
	for _, rec := range s.CutProgress {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.ClipID != out[j].Key.ClipID {
			return out[i].Key.ClipID < out[j].Key.ClipID
		}
		return out[i].Key.Variant == VariantHorizontal && out[j].Key.Variant != VariantHorizontal
	})
	return out
}

// SortedUploads returns upload records ordered by name.
func (s *PipelineState) SortedUploads() []UploadRecord {
	out := make([]UploadRecord, 0, len(s.Uploads))
	for _, rec := range s.Uploads {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
