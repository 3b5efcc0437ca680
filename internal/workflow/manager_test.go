package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/source"
	"clipper/internal/stage"
	"clipper/internal/state"
	"clipper/internal/testsupport"
	"clipper/internal/workdir"
	"clipper/internal/workflow"
)

// fakeStage is satisfied once the recorded stage reaches reach.
type fakeStage struct {
	name     stage.Name
	reach    state.Stage
	err      error
	failures []stage.Failure

	mu    sync.Mutex
	calls int
}

func (f *fakeStage) Name() stage.Name { return f.name }

func (f *fakeStage) Satisfied(_ context.Context, in stage.Input) bool {
	return in.State != nil && in.State.Stage.AtLeast(f.reach)
}

func (f *fakeStage) Execute(_ context.Context, in stage.Input) (stage.Output, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return stage.Output{}, f.err
	}
	out := stage.Output{State: in.State, Failures: f.failures}
	if len(f.failures) == 0 && !(in.Draft && f.name == stage.Cut) {
		out.Advance = f.reach
	}
	return out, nil
}

func (f *fakeStage) HealthCheck(context.Context) stage.Health { return stage.Ready(f.name) }

func (f *fakeStage) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSet struct {
	ingest, transcribe, cut, upload *fakeStage
	noUpload                        bool
}

func newFakeSet() *fakeSet {
	return &fakeSet{
		ingest:     &fakeStage{name: stage.Ingest, reach: state.StageDownloaded},
		transcribe: &fakeStage{name: stage.Transcribe, reach: state.StageTranscribed},
		cut:        &fakeStage{name: stage.Cut, reach: state.StageCut},
		upload:     &fakeStage{name: stage.Upload, reach: state.StageUploaded},
	}
}

func (s *fakeSet) factory(workflow.RunDeps) (workflow.Stages, error) {
	stages := workflow.Stages{Ingest: s.ingest, Transcribe: s.transcribe, Cut: s.cut}
	if !s.noUpload {
		stages.Upload = s.upload
	}
	return stages, nil
}

type harness struct {
	cfg     *config.Config
	rec     *testsupport.Recorder
	sink    *notifications.Sink
	manager *workflow.Manager
	source  source.Local
	layout  workdir.Layout
}

func newHarness(t *testing.T, stages *fakeSet) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	video := filepath.Join(t.TempDir(), "talk.mp4")
	testsupport.WriteFile(t, video, 2048)
	rec := &testsupport.Recorder{}
	sink := testsupport.NewSink(t, rec)
	return &harness{
		cfg:     cfg,
		rec:     rec,
		sink:    sink,
		manager: workflow.NewManager(cfg, stages.factory, sink, logging.NewNop()),
		source:  source.Local{Path: video},
		layout:  workdir.New(cfg.Paths.WorkRoot, "talk"),
	}
}

func (h *harness) run(t *testing.T, mode workflow.Mode) (workflow.Result, error) {
	t.Helper()
	return h.manager.Run(context.Background(), workflow.Request{Source: h.source, Mode: mode})
}

func (h *harness) writeManifest(t *testing.T, body string) {
	t.Helper()
	if err := os.MkdirAll(h.layout.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.layout.Dir, "talk_clips.json"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (h *harness) recorded(t *testing.T) state.Stage {
	t.Helper()
	store := testsupport.MustOpenStore(t, h.layout)
	st, err := store.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return st.Stage
}

const twoClips = `{"clips": [
  {"id": 1, "title": "The hook", "start_time": 10, "end_time": 25, "virality_score": 8, "platform": "tiktok"},
  {"id": 2, "title": "Deep dive", "start_time": 100, "end_time": 220, "virality_score": 6}
]}`

func TestRunPausesWithoutManifestThenResumes(t *testing.T) {
	stages := newFakeSet()
	h := newHarness(t, stages)

	result, err := h.run(t, workflow.ModeFull)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if result.Outcome != workflow.OutcomePaused || result.ExitCode() != workflow.ExitOK {
		t.Fatalf("want paused with exit 0, got %s exit %d", result.Outcome, result.ExitCode())
	}
	if result.Recorded != state.StageTranscribed {
		t.Fatalf("recorded stage = %s, want transcribed", result.Recorded)
	}
	if stages.cut.Calls() != 0 || stages.upload.Calls() != 0 {
		t.Fatalf("cut/upload ran while paused: %d/%d", stages.cut.Calls(), stages.upload.Calls())
	}

	h.writeManifest(t, twoClips)
	result, err = h.run(t, workflow.ModeFull)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Outcome != workflow.OutcomeCompleted {
		t.Fatalf("outcome = %s, want completed", result.Outcome)
	}
	if stages.ingest.Calls() != 1 || stages.transcribe.Calls() != 1 {
		t.Fatalf("satisfied stages re-ran: ingest=%d transcribe=%d", stages.ingest.Calls(), stages.transcribe.Calls())
	}
	if len(result.Skipped) != 2 || result.Skipped[0] != stage.Ingest || result.Skipped[1] != stage.Transcribe {
		t.Fatalf("skipped = %v", result.Skipped)
	}
	if result.Recorded != state.StageUploaded {
		t.Fatalf("recorded stage = %s, want uploaded", result.Recorded)
	}

	testsupport.Drain(t, h.sink)
	paused := h.rec.OfType(notifications.EventPipelinePaused)
	if len(paused) != 1 {
		t.Fatalf("want one pause notification, got %d", len(paused))
	}
	if got := paused[0].Payload.String(notifications.KeyPath); got != h.layout.Dir {
		t.Fatalf("pause path = %q, want %q", got, h.layout.Dir)
	}
	if len(h.rec.OfType(notifications.EventRunCompleted)) != 1 {
		t.Fatal("expected one run_completed notification")
	}
}

func TestRunPartialCutStillUploads(t *testing.T) {
	stages := newFakeSet()
	stages.cut.failures = []stage.Failure{{Unit: "clip 2 horizontal", ClipID: 2, Variant: state.VariantHorizontal, Err: errors.New("exit status 1")}}
	h := newHarness(t, stages)
	h.writeManifest(t, twoClips)

	result, err := h.run(t, workflow.ModeFull)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != workflow.OutcomePartial || result.ExitCode() != workflow.ExitPartial {
		t.Fatalf("want partial exit 2, got %s exit %d", result.Outcome, result.ExitCode())
	}
	if stages.upload.Calls() != 1 {
		t.Fatalf("upload calls = %d, want 1", stages.upload.Calls())
	}
	if result.Recorded != state.StageClipsIdentified {
		t.Fatalf("recorded stage = %s, want clips_identified", result.Recorded)
	}
	if len(result.Failures) != 1 || result.Failures[0].ClipID != 2 {
		t.Fatalf("failures = %+v", result.Failures)
	}

	stages.cut.failures = nil
	result, err = h.run(t, workflow.ModeFull)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stages.upload.Calls() != 2 {
		t.Fatalf("upload calls = %d, want 2", stages.upload.Calls())
	}
	if result.Recorded != state.StageUploaded {
		t.Fatalf("recorded stage after full cut = %s", result.Recorded)
	}
}

func TestRunStageFailureKeepsRecordedStage(t *testing.T) {
	stages := newFakeSet()
	stages.transcribe.err = services.Wrap(services.ErrTranscription, "transcribe", "poll", "provider error", nil)
	h := newHarness(t, stages)

	result, err := h.run(t, workflow.ModeFull)
	if err == nil {
		t.Fatal("expected error")
	}
	var stageErr *workflow.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != stage.Transcribe {
		t.Fatalf("want transcribe StageError, got %v", err)
	}
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("error lost its marker: %v", err)
	}
	if result.ExitCode() != workflow.ExitFatal {
		t.Fatalf("exit = %d, want 1", result.ExitCode())
	}
	if got := h.recorded(t); got != state.StageDownloaded {
		t.Fatalf("recorded stage = %s, want downloaded", got)
	}

	testsupport.Drain(t, h.sink)
	if len(h.rec.OfType(notifications.EventError)) != 1 {
		t.Fatal("expected one error notification")
	}
}

func TestRunTranscribeOnly(t *testing.T) {
	stages := newFakeSet()
	h := newHarness(t, stages)
	h.writeManifest(t, twoClips)

	result, err := h.run(t, workflow.ModeTranscribeOnly)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != workflow.OutcomeCompleted {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if stages.cut.Calls() != 0 || stages.upload.Calls() != 0 {
		t.Fatal("transcribe-only ran later stages")
	}
	if result.Recorded != state.StageTranscribed {
		t.Fatalf("recorded stage = %s", result.Recorded)
	}
}

func TestRunDraftRunsCutStageAndNeverUploads(t *testing.T) {
	stages := newFakeSet()
	h := newHarness(t, stages)
	h.writeManifest(t, twoClips)

	for i := 0; i < 2; i++ {
		result, err := h.run(t, workflow.ModeDraft)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if result.Recorded != state.StageClipsIdentified {
			t.Fatalf("draft advanced past clips_identified: %s", result.Recorded)
		}
	}
	if stages.cut.Calls() != 2 {
		t.Fatalf("cut calls = %d, want 2", stages.cut.Calls())
	}
	if stages.upload.Calls() != 0 {
		t.Fatal("draft uploaded")
	}
}

func TestRunInvalidManifestFails(t *testing.T) {
	stages := newFakeSet()
	h := newHarness(t, stages)
	h.writeManifest(t, `{"clips": [{"id": 1, "title": "x", "start_time": 30, "end_time": 10}]}`)

	result, err := h.run(t, workflow.ModeCutOnly)
	var stageErr *workflow.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != stage.Cut {
		t.Fatalf("want cut StageError, got %v", err)
	}
	if !errors.Is(err, services.ErrManifest) {
		t.Fatalf("want manifest error, got %v", err)
	}
	if result.Outcome != workflow.OutcomeFailed || stages.cut.Calls() != 0 {
		t.Fatalf("outcome %s, cut calls %d", result.Outcome, stages.cut.Calls())
	}

	testsupport.Drain(t, h.sink)
	errs := h.rec.OfType(notifications.EventError)
	if len(errs) != 1 {
		t.Fatalf("expected one error notification, got %d", len(errs))
	}
	if got := errs[0].Payload.String(notifications.KeyStage); got != string(stage.Cut) {
		t.Fatalf("error stage = %q, want cut", got)
	}
	if got := errs[0].Payload.String(notifications.KeyError); !strings.Contains(got, "end_time") {
		t.Fatalf("error detail = %q", got)
	}
}

func TestRunFailsFastWhenLocked(t *testing.T) {
	stages := newFakeSet()
	h := newHarness(t, stages)
	if err := h.layout.Ensure(); err != nil {
		t.Fatal(err)
	}
	lock, err := workdir.Acquire(h.layout)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	if _, err := h.run(t, workflow.ModeFull); !errors.Is(err, workdir.ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}
	if stages.ingest.Calls() != 0 {
		t.Fatal("ingest ran without the lock")
	}
}

func TestRunUploadOnlyRequiresProvider(t *testing.T) {
	stages := newFakeSet()
	stages.noUpload = true
	h := newHarness(t, stages)

	_, err := h.run(t, workflow.ModeUploadOnly)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
}

func TestRunFullWithoutUploaderStopsAfterCut(t *testing.T) {
	stages := newFakeSet()
	stages.noUpload = true
	h := newHarness(t, stages)
	h.writeManifest(t, twoClips)

	result, err := h.run(t, workflow.ModeFull)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Outcome != workflow.OutcomeCompleted || result.Recorded != state.StageCut {
		t.Fatalf("outcome %s recorded %s", result.Outcome, result.Recorded)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want workflow.Mode
		ok   bool
	}{
		{"", workflow.ModeFull, true},
		{"Draft", workflow.ModeDraft, true},
		{" cut-and-upload ", workflow.ModeCutAndUpload, true},
		{"everything", "", false},
	} {
		got, err := workflow.ParseMode(tc.in)
		if (err == nil) != tc.ok || got != tc.want {
			t.Errorf("ParseMode(%q) = %q, %v", tc.in, got, err)
		}
	}
}
