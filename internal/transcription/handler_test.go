package transcription_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/services/assemblyai"
	"clipper/internal/services/drive"
	"clipper/internal/stage"
	"clipper/internal/state"
	"clipper/internal/testsupport"
	"clipper/internal/transcription"
	"clipper/internal/workdir"
)

type fakeExtractor struct {
	calls int
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, _, output, _ string) error {
	f.calls++
	return os.WriteFile(output, []byte("mp3 audio"), 0o644)
}

type fakeTranscriber struct {
	calls int
	err   error
}

func (f *fakeTranscriber) Transcribe(context.Context, string) (assemblyai.Transcript, error) {
	f.calls++
	if f.err != nil {
		return assemblyai.Transcript{}, f.err
	}
	return assemblyai.Transcript{
		ID:     "tx-1",
		Status: assemblyai.StatusCompleted,
		Words: []assemblyai.Word{
			{Text: "so", Start: 0, End: 300, Speaker: "A"},
			{Text: "yes", Start: 5_000, End: 61_000, Speaker: "B"},
		},
		Utterances: []assemblyai.Utterance{
			{Speaker: "A", Start: 0, End: 300, Text: "so"},
			{Speaker: "B", Start: 5_000, End: 61_000, Text: "yes"},
		},
	}, nil
}

func (f *fakeTranscriber) HealthCheck(context.Context) error { return nil }

type fakeUploader struct {
	mu      sync.Mutex
	parents []string
	paths   []string
}

func (f *fakeUploader) Upload(_ context.Context, localPath, parentID string) (drive.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, localPath)
	f.parents = append(f.parents, parentID)
	return drive.File{ID: "up", Name: localPath}, nil
}

func ingested(t *testing.T) (workdir.Layout, *state.PipelineState) {
	t.Helper()
	layout := testsupport.MustLayout(t, t.TempDir(), "talk")
	video := layout.VideoPath("talk.mp4")
	testsupport.WriteFile(t, video, 1024)
	artifact, err := state.Fingerprint(state.ArtifactVideo, video)
	if err != nil {
		t.Fatal(err)
	}
	st := state.New("talk")
	st.VideoName = "talk.mp4"
	st.SetArtifact(artifact)
	st.Advance(state.StageDownloaded)
	return layout, st
}

func TestTranscribeWritesArtifactsAndNotifies(t *testing.T) {
	layout, st := ingested(t)
	extractor := &fakeExtractor{}
	transcriber := &fakeTranscriber{}
	rec := &testsupport.Recorder{}
	sink := testsupport.NewSink(t, rec)
	handler := transcription.NewHandler(extractor, transcriber, sink, transcription.Options{}, logging.NewNop())

	out, err := handler.Execute(context.Background(), stage.Input{State: st, Layout: layout})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Advance != state.StageTranscribed {
		t.Fatalf("expected transcribed, got %q", out.Advance)
	}
	for _, name := range []string{state.ArtifactAudio, state.ArtifactSubtitles, state.ArtifactTranscript, state.ArtifactTranscriptData} {
		if a, ok := out.State.Artifact(name); !ok || !a.Valid() {
			t.Fatalf("artifact %s missing or invalid: %+v", name, a)
		}
	}
	srt, err := os.ReadFile(layout.SubtitlePath("talk.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(srt), "[Speaker B] yes") {
		t.Fatalf("unexpected srt: %s", srt)
	}
	if !handler.Satisfied(context.Background(), stage.Input{State: out.State, Layout: layout}) {
		t.Fatal("expected stage satisfied")
	}

	testsupport.Drain(t, sink)
	events := rec.OfType(notifications.EventTranscriptionCompleted)
	if len(events) != 1 {
		t.Fatalf("expected one transcription_completed event, got %d", len(events))
	}
	payload := events[0].Payload
	if payload.Int(notifications.KeySpeakers) != 2 || payload.Int(notifications.KeyWordCount) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if docs := payload.Strings(notifications.KeyDocuments); len(docs) != 2 {
		t.Fatalf("expected srt and markdown documents, got %v", docs)
	}
}

func TestTranscribeReusesPersistedResult(t *testing.T) {
	layout, st := ingested(t)
	extractor := &fakeExtractor{}
	transcriber := &fakeTranscriber{}
	handler := transcription.NewHandler(extractor, transcriber, nil, transcription.Options{}, logging.NewNop())

	out, err := handler.Execute(context.Background(), stage.Input{State: st, Layout: layout})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Losing the renderings must not resubmit audio to the provider.
	if err := os.Remove(layout.SubtitlePath("talk.mp4")); err != nil {
		t.Fatal(err)
	}
	if handler.Satisfied(context.Background(), stage.Input{State: out.State, Layout: layout}) {
		t.Fatal("missing srt must not satisfy the stage")
	}
	if _, err := handler.Execute(context.Background(), stage.Input{State: out.State, Layout: layout}); err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if transcriber.calls != 1 || extractor.calls != 1 {
		t.Fatalf("expected one provider call and one extraction, got %d and %d", transcriber.calls, extractor.calls)
	}
}

func TestTranscribeFailureIsTranscriptionError(t *testing.T) {
	layout, st := ingested(t)
	transcriber := &fakeTranscriber{err: errors.New("provider exploded")}
	handler := transcription.NewHandler(&fakeExtractor{}, transcriber, nil, transcription.Options{}, logging.NewNop())

	_, err := handler.Execute(context.Background(), stage.Input{State: st, Layout: layout})
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	// Extracted audio survives for the next attempt.
	if _, statErr := os.Stat(layout.AudioPath("talk.mp4")); statErr != nil {
		t.Fatalf("expected audio to remain: %v", statErr)
	}
}

func TestTranscriptsUploadedOnlyForDriveSources(t *testing.T) {
	uploader := &fakeUploader{}
	opts := transcription.Options{Uploader: uploader}

	layout, st := ingested(t)
	handler := transcription.NewHandler(&fakeExtractor{}, &fakeTranscriber{}, nil, opts, logging.NewNop())
	st.Source = state.SourceRef{Kind: state.SourceLocal, Locator: "/videos/talk.mp4"}
	if _, err := handler.Execute(context.Background(), stage.Input{State: st, Layout: layout}); err != nil {
		t.Fatalf("Execute local: %v", err)
	}
	if len(uploader.paths) != 0 {
		t.Fatalf("local source must not upload transcripts, got %v", uploader.paths)
	}

	layout, st = ingested(t)
	st.Source = state.SourceRef{Kind: state.SourceDrive, FileID: "f1", ParentID: "parent-9"}
	if _, err := handler.Execute(context.Background(), stage.Input{State: st, Layout: layout}); err != nil {
		t.Fatalf("Execute drive: %v", err)
	}
	if len(uploader.paths) != 2 || uploader.parents[0] != "parent-9" {
		t.Fatalf("expected two uploads into parent-9, got %v %v", uploader.paths, uploader.parents)
	}
}
