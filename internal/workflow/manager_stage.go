package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clipper/internal/logging"
	"clipper/internal/manifest"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/stageexec"
	"clipper/internal/state"
	"clipper/internal/workdir"
)

// errPaused ends a run that is waiting for the clip manifest.
var errPaused = errors.New("waiting for clip manifest")

// run holds the mutable values of one Manager.Run call.
type run struct {
	m        *Manager
	store    *state.Store
	stages   Stages
	layout   workdir.Layout
	plan     plan
	req      Request
	logger   *slog.Logger
	state    *state.PipelineState
	manifest *manifest.Manifest
	result   *Result
}

func (r *run) execute(ctx context.Context) error {
	if err := r.step(ctx, r.stages.Ingest); err != nil {
		return err
	}
	if r.plan.transcribe {
		if err := r.step(ctx, r.stages.Transcribe); err != nil {
			return err
		}
	}
	if r.plan.cut {
		if err := r.requireManifest(ctx); err != nil {
			return err
		}
		if err := r.step(ctx, r.stages.Cut); err != nil {
			return err
		}
	}
	if r.plan.upload {
		if r.stages.Upload == nil {
			if !r.plan.cut {
				return services.Wrap(services.ErrConfiguration, string(stage.Upload), "upload", "upload.provider is not configured", nil)
			}
			r.logger.Info("upload disabled; clips kept in work directory",
				logging.String("clips_dir", r.layout.ClipsDir()),
			)
			return nil
		}
		if err := r.step(ctx, r.stages.Upload); err != nil {
			return err
		}
	}
	return nil
}

// step runs handler unless its outputs already verify. Draft cuts always
// run because draft never marks the cut stage done.
func (r *run) step(ctx context.Context, handler stage.Handler) error {
	if handler == nil {
		return fmt.Errorf("stage handler unavailable")
	}
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: handler.Name(), Err: err}
	}
	in := r.input()
	if !(r.plan.draft && handler.Name() == stage.Cut) && handler.Satisfied(ctx, in) {
		r.logger.Info("stage skipped; outputs verified",
			logging.EventType("stage_skipped"),
			logging.String(logging.FieldStage, string(handler.Name())),
		)
		r.result.Skipped = append(r.result.Skipped, handler.Name())
		return nil
	}

	out, err := stageexec.Run(ctx, stageexec.Options{
		Logger:  r.logger,
		Store:   r.store,
		Sink:    r.m.sink,
		Handler: handler,
		Input:   in,
	})
	r.result.Executed = append(r.result.Executed, handler.Name())
	if err != nil {
		// The last good state stays recorded; reload it so the result
		// reports what is actually persisted.
		if current, loadErr := r.store.Load(ctx); loadErr == nil {
			r.state = current
		}
		return &StageError{Stage: handler.Name(), Err: err}
	}
	r.state = out.State
	r.result.Failures = append(r.result.Failures, out.Failures...)
	return nil
}

func (r *run) input() stage.Input {
	return stage.Input{
		State:    r.state,
		Layout:   r.layout,
		Manifest: r.manifest,
		Draft:    r.plan.draft,
	}
}

// effective walks the stage ladder and returns the furthest stage whose
// outputs verify, independent of the recorded stage.
func (r *run) effective(ctx context.Context) state.Stage {
	in := r.input()
	if in.Manifest == nil {
		if m, err := r.loadManifest(); err == nil {
			in.Manifest = m
		}
	}
	in.Draft = false
	ladder := []struct {
		reached state.Stage
		ok      func() bool
	}{
		{state.StageDownloaded, func() bool { return satisfied(ctx, r.stages.Ingest, in) }},
		{state.StageTranscribed, func() bool { return satisfied(ctx, r.stages.Transcribe, in) }},
		{state.StageClipsIdentified, func() bool { return in.Manifest != nil }},
		{state.StageCut, func() bool { return satisfied(ctx, r.stages.Cut, in) }},
		{state.StageUploaded, func() bool { return satisfied(ctx, r.stages.Upload, in) }},
	}
	reached := state.StageNone
	for _, rung := range ladder {
		if !rung.ok() {
			break
		}
		reached = rung.reached
	}
	return reached
}

func satisfied(ctx context.Context, h stage.Handler, in stage.Input) bool {
	return h != nil && h.Satisfied(ctx, in)
}
