package ingest

import (
	"context"
	"log/slog"
	"os"
	"os/exec"

	"clipper/internal/logging"
	"clipper/internal/media/ffprobe"
	"clipper/internal/services"
	"clipper/internal/source"
	"clipper/internal/stage"
	"clipper/internal/state"
)

// Prober reports a media file's duration in seconds.
type Prober func(ctx context.Context, path string) (float64, error)

// FFprobe returns a Prober backed by the ffprobe binary.
func FFprobe(binary string) Prober {
	return func(ctx context.Context, path string) (float64, error) {
		return ffprobe.Duration(ctx, binary, path)
	}
}

// Handler places the source video in the work directory and records its
// fingerprint and duration.
type Handler struct {
	provider source.Provider
	probe    Prober
	binary   string
	logger   *slog.Logger
}

// NewHandler builds the ingest stage. binary is the ffprobe executable
// checked by HealthCheck.
func NewHandler(provider source.Provider, probe Prober, binary string, logger *slog.Logger) *Handler {
	h := &Handler{provider: provider, probe: probe, binary: binary}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "ingest")
}

// Name implements stage.Handler.
func (h *Handler) Name() stage.Name { return stage.Ingest }

// Satisfied reports whether the recorded video still verifies and its
// duration is known.
func (h *Handler) Satisfied(_ context.Context, in stage.Input) bool {
	if in.State == nil || in.State.SourceDuration <= 0 {
		return false
	}
	video, ok := in.State.Artifact(state.ArtifactVideo)
	return ok && video.Valid()
}

// Execute implements stage.Handler.
func (h *Handler) Execute(ctx context.Context, in stage.Input) (stage.Output, error) {
	st := in.State
	logger := logging.WithContext(ctx, h.logger)
	dest := in.Layout.VideoPath(st.VideoName)

	recorded, ok := st.Artifact(state.ArtifactVideo)
	if ok && recorded.Path == dest && recorded.Valid() {
		logger.Info("source already in work dir", logging.String("path", dest))
	} else {
		if h.provider == nil {
			return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Ingest), "fetch", "no source provider; pass a Drive link or --local path", nil)
		}
		logger.Info("fetching source",
			logging.EventType("source_fetch"),
			logging.String("source_kind", string(st.Source.Kind)),
			logging.String("locator", st.Source.Locator),
			logging.String("dest", dest),
		)
		if err := h.provider.Fetch(ctx, dest); err != nil {
			return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Ingest), "fetch", "", err)
		}
	}

	video, err := state.Fingerprint(state.ArtifactVideo, dest)
	if err != nil {
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Ingest), "fingerprint", "", err)
	}
	if video.Size == 0 {
		_ = os.Remove(dest)
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Ingest), "fetch", "source video is empty", nil)
	}
	st.SetArtifact(video)

	duration, err := h.probe(ctx, dest)
	if err != nil {
		return stage.Output{}, services.Wrap(services.ErrSource, string(stage.Ingest), "probe duration", "", err)
	}
	st.SourceDuration = duration

	logger.Info("source ready",
		logging.EventType("source_ready"),
		logging.Int64("size_bytes", video.Size),
		logging.Float64("duration_seconds", duration),
		logging.Bool("checksummed", video.SHA256 != ""),
	)
	return stage.Output{
		State:   st,
		Advance: state.StageDownloaded,
		Summary: "source ready",
	}, nil
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	if h.probe == nil {
		return stage.NotReady(stage.Ingest, "duration probe not configured")
	}
	if h.binary != "" {
		if _, err := exec.LookPath(h.binary); err != nil {
			return stage.NotReady(stage.Ingest, h.binary+" not found on PATH")
		}
	}
	return stage.Ready(stage.Ingest)
}
