package cutting

import (
	"context"
	"fmt"
	"log/slog"

	"clipper/internal/logging"
	"clipper/internal/manifest"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/state"
)

// Handler is the cut stage. It renders every manifest clip (or only the
// top-scored one in draft mode) through the Scheduler.
type Handler struct {
	scheduler *Scheduler
	store     *state.Store
	sink      *notifications.Sink
	vertical  bool
	binary    string
	logger    *slog.Logger
}

// NewHandler builds the cut stage. binary is the ffmpeg executable reported
// by HealthCheck.
func NewHandler(scheduler *Scheduler, store *state.Store, sink *notifications.Sink, vertical bool, binary string, logger *slog.Logger) *Handler {
	h := &Handler{
		scheduler: scheduler,
		store:     store,
		sink:      sink,
		vertical:  vertical,
		binary:    binary,
	}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "cutter")
}

// Name implements stage.Handler.
func (h *Handler) Name() stage.Name { return stage.Cut }

// Satisfied reports whether every job for the manifest is recorded done and
// its output still verifies.
func (h *Handler) Satisfied(_ context.Context, in stage.Input) bool {
	if in.Manifest == nil || in.State == nil {
		return false
	}
	video, ok := in.State.Artifact(state.ArtifactVideo)
	if !ok {
		return false
	}
	jobs := BuildJobs(h.clips(in), in.Layout, video.Path, h.vertical)
	pending, _ := Partition(in.State, jobs)
	return len(jobs) > 0 && len(pending) == 0
}

// Execute implements stage.Handler.
func (h *Handler) Execute(ctx context.Context, in stage.Input) (stage.Output, error) {
	if in.Manifest == nil {
		return stage.Output{}, services.Wrap(services.ErrManifest, string(stage.Cut), "load manifest", "no validated clip manifest", nil)
	}
	video, ok := in.State.Artifact(state.ArtifactVideo)
	if !ok {
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Cut), "locate source", "source video not recorded", nil)
	}
	if err := video.Verify(); err != nil {
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Cut), "verify source", "", err)
	}

	clips := h.clips(in)
	if len(clips) == 0 {
		return stage.Output{}, services.Wrap(services.ErrManifest, string(stage.Cut), "select clips", "manifest has no clips", nil)
	}
	if !in.Draft {
		h.summarize(in.State.VideoName, in.Manifest)
	}

	jobs := BuildJobs(clips, in.Layout, video.Path, h.vertical)
	logger := logging.WithContext(ctx, h.logger)
	logger.Info("cutting clips",
		logging.EventType("cut_start"),
		logging.Int("clips", len(clips)),
		logging.Int("jobs", len(jobs)),
		logging.Bool("vertical", h.vertical),
		logging.Bool("draft", in.Draft),
	)

	batch, err := h.scheduler.Run(ctx, in.State.VideoName, jobs)
	if err != nil {
		return stage.Output{}, services.Wrap(services.ErrCutJob, string(stage.Cut), "run scheduler", "", err)
	}

	// Workers persist their own progress; reload so the returned state
	// carries it.
	current, err := h.store.Load(ctx)
	if err != nil {
		return stage.Output{}, fmt.Errorf("reload cut progress: %w", err)
	}

	out := stage.Output{State: current, Summary: batch.Summary()}
	for _, r := range batch.Failed() {
		out.Failures = append(out.Failures, stage.Failure{
			Unit:    r.Job.Key.String(),
			ClipID:  r.Job.Key.ClipID,
			Variant: r.Job.Key.Variant,
			Err:     failureErr(r),
		})
	}

	if in.Draft {
		h.draftReady(in.State.VideoName, clips[0], batch)
		return out, nil
	}
	if len(out.Failures) == 0 {
		out.Advance = state.StageCut
	}
	return out, nil
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if h.scheduler == nil || h.store == nil {
		return stage.NotReady(stage.Cut, "scheduler not configured")
	}
	return stage.Ready(stage.Cut)
}

func (h *Handler) clips(in stage.Input) []manifest.Clip {
	if in.Manifest == nil {
		return nil
	}
	if in.Draft {
		top, ok := in.Manifest.Top()
		if !ok {
			return nil
		}
		return []manifest.Clip{top}
	}
	return in.Manifest.Clips
}

func (h *Handler) summarize(videoName string, m *manifest.Manifest) {
	lines := make([]string, 0, len(m.Clips))
	for _, clip := range m.Clips {
		lines = append(lines, notifications.ClipLine(clip.ID, clip.ViralityScore, clip.Title, clip.StartTime, clip.EndTime, clip.Platform))
	}
	payload := notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyClipLines: lines,
		notifications.KeyCount:     len(m.Clips),
	}
	if m.Path != "" {
		payload[notifications.KeyManifestPath] = m.Path
		payload[notifications.KeyDocuments] = []string{m.Path}
	}
	h.sink.Send(notifications.EventClipsSummary, payload)
}

func (h *Handler) draftReady(videoName string, clip manifest.Clip, batch Batch) {
	var outputs []string
	for _, r := range batch.Results {
		if r.OK() {
			outputs = append(outputs, r.Job.Output)
		}
	}
	if len(outputs) == 0 {
		return
	}
	h.sink.Send(notifications.EventDraftReady, notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyClipID:    clip.ID,
		notifications.KeyTitle:     clip.Title,
		notifications.KeyScore:     clip.ViralityScore,
		notifications.KeyDocuments: outputs,
	})
}

func failureErr(r JobResult) error {
	if r.Err != nil {
		return r.Err
	}
	return fmt.Errorf("%s %s", r.Job.Key, r.Status)
}
