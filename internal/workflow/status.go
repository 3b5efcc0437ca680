package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"clipper/internal/config"
	"clipper/internal/cutting"
	"clipper/internal/ingest"
	"clipper/internal/logging"
	"clipper/internal/manifest"
	"clipper/internal/state"
	"clipper/internal/transcription"
	"clipper/internal/upload"
	"clipper/internal/workdir"
)

// Status describes one work directory as seen from disk.
type Status struct {
	Slug      string
	VideoName string
	Dir       string
	Recorded  state.Stage
	Effective state.Stage
	ClipsDone int
	ClipsAll  int
	Uploads   int
	Link      string
	Manifest  string
	Errors    []string
}

// Inspect reports the recorded and effective stage of every work directory
// under the configured work root, sorted by slug. It takes no locks and
// never writes state.
func Inspect(ctx context.Context, cfg *config.Config) ([]Status, error) {
	entries, err := os.ReadDir(cfg.Paths.WorkRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read work root: %w", err)
	}
	var out []Status
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		layout := workdir.New(cfg.Paths.WorkRoot, entry.Name())
		if _, err := os.Stat(layout.StatePath()); err != nil {
			continue
		}
		st, err := InspectLayout(ctx, cfg, layout)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// InspectLayout reports one work directory.
func InspectLayout(ctx context.Context, cfg *config.Config, layout workdir.Layout) (Status, error) {
	store, err := state.Open(ctx, layout.StatePath(), layout.Slug)
	if err != nil {
		return Status{}, err
	}
	defer store.Close()
	st, err := store.Load(ctx)
	if err != nil {
		return Status{}, err
	}

	logger := logging.NewNop()
	r := &run{
		m:      &Manager{cfg: cfg, logger: logger},
		layout: layout,
		logger: logger,
		state:  st,
		stages: Stages{
			Ingest:     ingest.NewHandler(nil, nil, cfg.FFprobeBinary(), logger),
			Transcribe: transcription.NewHandler(nil, nil, nil, transcription.Options{}, logger),
			Cut:        cutting.NewHandler(nil, nil, nil, cfg.Cutting.Vertical, cfg.FFmpegBinary(), logger),
		},
	}
	if cfg.Upload.Provider != "" {
		// Satisfied only consults recorded state, so no client is needed.
		r.stages.Upload = upload.NewHandler(nil, nil, nil, logger)
	}

	status := Status{
		Slug:      layout.Slug,
		VideoName: st.VideoName,
		Dir:       layout.Dir,
		Recorded:  st.Stage,
		Effective: r.effective(ctx),
		Link:      st.FolderLink,
	}
	m, err := r.loadManifest()
	switch {
	case err == nil:
		r.manifest = m
		status.Manifest = m.Path
		status.ClipsAll = len(cutting.BuildJobs(m.Clips, layout, "", cfg.Cutting.Vertical))
	case !errors.Is(err, manifest.ErrNotFound):
		status.Errors = append(status.Errors, err.Error())
	}
	for _, rec := range st.SortedCutRecords() {
		if rec.Done {
			status.ClipsDone++
		} else if rec.LastError != "" {
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %s", rec.Key, rec.LastError))
		}
	}
	for _, rec := range st.SortedUploads() {
		if rec.Done {
			status.Uploads++
		}
	}
	return status, nil
}
