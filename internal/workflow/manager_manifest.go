package workflow

import (
	"context"
	"errors"
	"fmt"

	"clipper/internal/logging"
	"clipper/internal/manifest"
	"clipper/internal/notifications"
	"clipper/internal/stage"
	"clipper/internal/state"
)

func (r *run) loadManifest() (*manifest.Manifest, error) {
	path, err := manifest.Discover(r.layout.Dir, r.req.ManifestPath)
	if err != nil {
		return nil, err
	}
	return manifest.Load(path, manifest.Limits{
		SourceDuration: r.state.SourceDuration,
		MaxClipSeconds: r.m.cfg.Cutting.MaxClipSeconds,
	})
}

// requireManifest loads and validates the clip manifest, recording it and
// advancing to clips_identified. A missing manifest pauses the run.
func (r *run) requireManifest(ctx context.Context) error {
	m, err := r.loadManifest()
	if errors.Is(err, manifest.ErrNotFound) {
		r.pause(err)
		return errPaused
	}
	if err != nil {
		logging.ErrorWithContext(r.logger, "clip manifest rejected", "manifest_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the manifest and re-run; no clips were cut"),
		)
		r.m.sink.Send(notifications.EventError, notifications.Payload{
			notifications.KeyVideoName: r.state.VideoName,
			notifications.KeyStage:     string(stage.Cut),
			notifications.KeyError:     err.Error(),
			notifications.KeyRunID:     r.result.RunID,
		})
		return &StageError{Stage: stage.Cut, Err: err}
	}
	for _, w := range m.Warnings {
		logging.WarnWithContext(r.logger, "manifest value outside known taxonomy", "manifest_warning",
			logging.Int(logging.FieldClipID, w.ClipID),
			logging.String("field", w.Field),
			logging.String("value", w.Value),
			logging.String(logging.FieldImpact, "value passed through unchanged"),
		)
	}

	artifact, err := state.Fingerprint(state.ArtifactManifest, m.Path)
	if err != nil {
		return &StageError{Stage: stage.Cut, Err: fmt.Errorf("fingerprint manifest: %w", err)}
	}
	st, err := r.store.Update(ctx, func(cur *state.PipelineState) error {
		cur.RecordArtifact(artifact)
		cur.Advance(state.StageClipsIdentified)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record manifest: %w", err)
	}
	r.state = st
	r.manifest = m
	r.logger.Info("clip manifest validated",
		logging.EventType("manifest_validated"),
		logging.String("path", m.Path),
		logging.Int("clips", len(m.Clips)),
		logging.Int("warnings", len(m.Warnings)),
	)
	return nil
}

func (r *run) pause(reason error) {
	message := fmt.Sprintf("transcript ready in %s; write %s_clips.json there and re-run", r.layout.Dir, r.layout.Slug)
	if r.req.ManifestPath != "" {
		message = fmt.Sprintf("manifest %s not found; write it and re-run", r.req.ManifestPath)
	}
	r.result.Outcome = OutcomePaused
	r.result.Message = message
	r.logger.Info("run paused for clip manifest",
		logging.EventType("pipeline_paused"),
		logging.String("reason", reason.Error()),
		logging.String("work_dir", r.layout.Dir),
	)
	r.m.sink.Send(notifications.EventPipelinePaused, notifications.Payload{
		notifications.KeyVideoName: r.state.VideoName,
		notifications.KeyStage:     string(stage.Cut),
		notifications.KeyDetail:    message,
		notifications.KeyPath:      r.layout.Dir,
		notifications.KeyRunID:     r.result.RunID,
	})
}
