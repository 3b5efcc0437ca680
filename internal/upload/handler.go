package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/state"
)

// Handler publishes completed clip outputs and the manifest through an
// Uploader. Each file is recorded separately so a failed upload never
// discards the ones that succeeded.
type Handler struct {
	uploader Uploader
	store    *state.Store
	sink     *notifications.Sink
	logger   *slog.Logger
}

// NewHandler builds the upload stage.
func NewHandler(uploader Uploader, store *state.Store, sink *notifications.Sink, logger *slog.Logger) *Handler {
	h := &Handler{uploader: uploader, store: store, sink: sink}
	h.SetLogger(logger)
	return h
}

// SetLogger implements stage.LoggerAware.
func (h *Handler) SetLogger(logger *slog.Logger) {
	h.logger = logging.NewComponentLogger(logger, "uploader")
}

// Name implements stage.Handler.
func (h *Handler) Name() stage.Name { return stage.Upload }

type item struct {
	name    string
	path    string
	key     state.JobKey
	sha256  string
	isClip  bool
	changed time.Time
}

// Satisfied reports whether every completed clip and the manifest have been
// uploaded since they were last written.
func (h *Handler) Satisfied(_ context.Context, in stage.Input) bool {
	if in.State == nil || in.State.FolderID == "" {
		return false
	}
	items := collect(in)
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if !uploaded(in.State, it) {
			return false
		}
	}
	return true
}

// Execute implements stage.Handler.
func (h *Handler) Execute(ctx context.Context, in stage.Input) (stage.Output, error) {
	if h.uploader == nil {
		return stage.Output{}, services.Wrap(services.ErrConfiguration, string(stage.Upload), "upload", "no upload provider configured", nil)
	}
	logger := logging.WithContext(ctx, h.logger)
	st := in.State
	items := collect(in)
	clips := 0
	for _, it := range items {
		if it.isClip {
			clips++
		}
	}
	if clips == 0 {
		return stage.Output{}, services.Wrap(services.ErrUpload, string(stage.Upload), "collect clips", "no completed clips to upload", nil)
	}

	dest, err := h.uploader.Prepare(ctx, st)
	if err != nil {
		return stage.Output{}, services.Wrap(services.ErrUpload, string(stage.Upload), "prepare destination", "", err)
	}
	if dest.ID != st.FolderID {
		// A new destination invalidates earlier upload records.
		st.Uploads = map[string]state.UploadRecord{}
	}
	if _, err := h.store.Update(ctx, func(cur *state.PipelineState) error {
		if cur.FolderID != dest.ID {
			cur.Uploads = map[string]state.UploadRecord{}
		}
		cur.FolderID = dest.ID
		cur.FolderLink = dest.Link
		return nil
	}); err != nil {
		return stage.Output{}, fmt.Errorf("record upload destination: %w", err)
	}
	st.FolderID, st.FolderLink = dest.ID, dest.Link

	logger.Info("uploading outputs",
		logging.EventType("upload_start"),
		logging.String("provider", h.uploader.Provider()),
		logging.String("destination", dest.Name),
		logging.Int("files", len(items)),
	)

	var failures []stage.Failure
	sent, skipped := 0, 0
	for _, it := range items {
		if uploaded(st, it) {
			skipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return stage.Output{}, services.Wrap(services.ErrUpload, string(stage.Upload), "upload", "canceled", err)
		}
		remote, putErr := h.uploader.Put(ctx, dest, it.path)
		rec := state.UploadRecord{Name: it.name, Path: it.path, SHA256: it.sha256, UpdatedAt: time.Now().UTC()}
		if putErr != nil {
			rec.LastError = putErr.Error()
			failure := stage.Failure{Unit: it.name, Err: services.Wrap(services.ErrUpload, string(stage.Upload), "upload", it.path, putErr)}
			if it.isClip {
				failure.ClipID, failure.Variant = it.key.ClipID, it.key.Variant
			}
			failures = append(failures, failure)
			logging.WarnWithContext(logger, "upload failed", "upload_failed",
				logging.String("artifact", it.name),
				logging.String("path", it.path),
				logging.Error(putErr),
				logging.String(logging.FieldErrorHint, "rerun with --upload-only once the provider is reachable"),
				logging.String(logging.FieldImpact, "file not published"),
			)
		} else {
			rec.Done, rec.Link, rec.RemoteID = true, remote.Link, remote.ID
			sent++
			logger.Info("uploaded",
				logging.String("artifact", it.name),
				logging.String("remote_id", remote.ID),
			)
		}
		if _, err := h.store.Update(ctx, func(cur *state.PipelineState) error {
			cur.SetUpload(rec)
			return nil
		}); err != nil {
			return stage.Output{}, fmt.Errorf("record upload of %s: %w", it.name, err)
		}
	}

	link, err := h.uploader.Publish(ctx, dest)
	if err != nil {
		failures = append(failures, stage.Failure{Unit: "share " + dest.Name, Err: services.Wrap(services.ErrUpload, string(stage.Upload), "share", dest.Name, err)})
		logging.WarnWithContext(logger, "could not share destination", "upload_share_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "link may require sign-in"),
		)
		link = dest.Link
	}

	current, err := h.store.Load(ctx)
	if err != nil {
		return stage.Output{}, fmt.Errorf("reload upload progress: %w", err)
	}
	current.FolderLink = link

	h.sink.Send(notifications.EventUploadCompleted, notifications.Payload{
		notifications.KeyVideoName:      st.VideoName,
		notifications.KeyLink:           link,
		notifications.KeyCount:          sent + skipped,
		notifications.KeyFailed:         len(failures),
		notifications.KeyUploadProvider: h.uploader.Provider(),
	})

	out := stage.Output{
		State:    current,
		Failures: failures,
		Summary:  fmt.Sprintf("%d uploaded, %d already present, %d failed", sent, skipped, len(failures)),
	}
	// A partial cut leaves the recorded stage short of cut; uploading what
	// exists must not carry it past the missing outputs.
	if len(failures) == 0 && st.Stage.AtLeast(state.StageCut) {
		out.Advance = state.StageUploaded
	}
	return out, nil
}

// HealthCheck implements stage.Handler.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.uploader == nil {
		return stage.NotReady(stage.Upload, "no upload provider configured")
	}
	if err := h.uploader.HealthCheck(ctx); err != nil {
		return stage.NotReady(stage.Upload, err.Error())
	}
	return stage.Ready(stage.Upload)
}

// collect lists completed clip outputs that still verify, in clip order,
// followed by the manifest.
func collect(in stage.Input) []item {
	var items []item
	for _, rec := range in.State.SortedCutRecords() {
		if !rec.Done || !rec.Output.Valid() {
			continue
		}
		items = append(items, item{
			name:    state.ClipArtifactName(rec.Key),
			path:    rec.Output.Path,
			key:     rec.Key,
			sha256:  rec.Output.SHA256,
			isClip:  true,
			changed: rec.UpdatedAt,
		})
	}
	if m, ok := in.State.Artifact(state.ArtifactManifest); ok && m.Valid() {
		items = append(items, item{name: state.ArtifactManifest, path: m.Path, sha256: m.SHA256, changed: m.RecordedAt})
	} else if in.Manifest != nil && in.Manifest.Path != "" {
		items = append(items, item{name: state.ArtifactManifest, path: in.Manifest.Path})
	}
	return items
}

// uploaded compares digests when both sides have one and falls back to
// timestamps for files too large to hash.
func uploaded(st *state.PipelineState, it item) bool {
	rec, ok := st.Uploads[it.name]
	if !ok || !rec.Done || rec.Path != it.path {
		return false
	}
	if rec.SHA256 != "" && it.sha256 != "" {
		return rec.SHA256 == it.sha256
	}
	return !rec.UpdatedAt.Before(it.changed)
}
