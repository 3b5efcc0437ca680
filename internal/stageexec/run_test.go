package stageexec_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/stageexec"
	"clipper/internal/state"
	"clipper/internal/testsupport"
)

type fakeHandler struct {
	advance state.Stage
	err     error
	mutate  func(*state.PipelineState)
}

func (h *fakeHandler) Name() stage.Name { return stage.Transcribe }
func (h *fakeHandler) Satisfied(context.Context, stage.Input) bool { return false }
func (h *fakeHandler) HealthCheck(context.Context) stage.Health { return stage.Ready(stage.Transcribe) }
func (h *fakeHandler) Execute(_ context.Context, in stage.Input) (stage.Output, error) {
	if h.mutate != nil {
		h.mutate(in.State)
	}
	if h.err != nil {
		return stage.Output{}, h.err
	}
	return stage.Output{State: in.State, Advance: h.advance, Summary: "ok"}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []notifications.Event
	stages []string
}

func (l *eventLog) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	l.stages = append(l.stages, payload.String(notifications.KeyStage))
	return nil
}

func setup(t *testing.T) (*state.Store, *state.PipelineState, *notifications.Sink, *eventLog) {
	t.Helper()
	layout := testsupport.MustLayout(t, t.TempDir(), "talk")
	store := testsupport.MustOpenStore(t, layout)
	st, err := store.Update(context.Background(), func(st *state.PipelineState) error {
		st.VideoName = "talk.mp4"
		st.Advance(state.StageDownloaded)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	log := &eventLog{}
	sink := notifications.NewSink(log, logging.NewNop(), notifications.SinkOptions{Timeout: time.Second})
	return store, st, sink, log
}

func closeSink(t *testing.T, sink *notifications.Sink) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("close sink: %v", err)
	}
}

func TestRunPersistsAndAdvances(t *testing.T) {
	store, st, sink, log := setup(t)
	handler := &fakeHandler{
		advance: state.StageTranscribed,
		mutate: func(st *state.PipelineState) {
			st.SetArtifact(state.Artifact{Name: state.ArtifactTranscript, Path: "/tmp/t.md", Size: 10})
		},
	}

	out, err := stageexec.Run(context.Background(), stageexec.Options{
		Logger: logging.NewNop(), Store: store, Sink: sink, Handler: handler,
		Input: stage.Input{State: st},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	closeSink(t, sink)

	if out.State.Stage != state.StageTranscribed {
		t.Fatalf("expected transcribed, got %s", out.State.Stage)
	}
	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Stage != state.StageTranscribed {
		t.Fatalf("stage not persisted: %s", persisted.Stage)
	}
	if _, ok := persisted.Artifact(state.ArtifactTranscript); !ok {
		t.Fatal("handler artifact not persisted")
	}
	if st.Stage != state.StageDownloaded {
		t.Fatal("caller's state must not be mutated")
	}
	if len(log.events) != 2 || log.events[0] != notifications.EventStageStarted || log.events[1] != notifications.EventStageCompleted {
		t.Fatalf("unexpected events %v", log.events)
	}
}

func TestRunFailureKeepsLastGoodState(t *testing.T) {
	store, st, sink, log := setup(t)
	stageErr := services.Wrap(services.ErrTranscription, "transcribe", "poll", "provider error", nil)
	handler := &fakeHandler{
		err: stageErr,
		mutate: func(st *state.PipelineState) {
			st.Advance(state.StageCut)
			st.SetArtifact(state.Artifact{Name: state.ArtifactTranscript, Path: "/tmp/partial.md"})
		},
	}

	_, err := stageexec.Run(context.Background(), stageexec.Options{
		Logger: logging.NewNop(), Store: store, Sink: sink, Handler: handler,
		Input: stage.Input{State: st},
	})
	if !errors.Is(err, services.ErrTranscription) {
		t.Fatalf("expected the handler error, got %v", err)
	}
	closeSink(t, sink)

	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Stage != state.StageDownloaded {
		t.Fatalf("failed stage must not be recorded, got %s", persisted.Stage)
	}
	if _, ok := persisted.Artifact(state.ArtifactTranscript); ok {
		t.Fatal("partial artifact must not be persisted")
	}
	if len(log.events) != 2 || log.events[1] != notifications.EventError || log.stages[1] != "transcribe" {
		t.Fatalf("expected an error event naming the stage, got %v %v", log.events, log.stages)
	}
}

func TestRunNeverRegressesStage(t *testing.T) {
	store, st, sink, _ := setup(t)
	if _, err := store.Update(context.Background(), func(s *state.PipelineState) error {
		s.Advance(state.StageCut)
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st.Advance(state.StageCut)

	out, err := stageexec.Run(context.Background(), stageexec.Options{
		Logger: logging.NewNop(), Store: store, Sink: sink,
		Handler: &fakeHandler{advance: state.StageTranscribed},
		Input:   stage.Input{State: st},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	closeSink(t, sink)
	if out.State.Stage != state.StageCut {
		t.Fatalf("stage regressed to %s", out.State.Stage)
	}
}

func TestRunRefusesToSkipAStage(t *testing.T) {
	store, st, sink, _ := setup(t)

	out, err := stageexec.Run(context.Background(), stageexec.Options{
		Logger: logging.NewNop(), Store: store, Sink: sink,
		Handler: &fakeHandler{advance: state.StageUploaded},
		Input:   stage.Input{State: st},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	closeSink(t, sink)
	if out.State.Stage != state.StageDownloaded {
		t.Fatalf("stage jumped to %s", out.State.Stage)
	}
	persisted, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.Stage != state.StageDownloaded {
		t.Fatalf("persisted stage = %s, want downloaded", persisted.Stage)
	}
}

func TestRunValidatesOptions(t *testing.T) {
	if _, err := stageexec.Run(context.Background(), stageexec.Options{}); err == nil {
		t.Fatal("expected error without handler")
	}
}
