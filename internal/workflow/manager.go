package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"clipper/internal/config"
	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/source"
	"clipper/internal/stage"
	"clipper/internal/state"
	"clipper/internal/workdir"
)

// Stages bundles the handlers for one run. Upload is nil when no upload
// provider is configured.
type Stages struct {
	Ingest     stage.Handler
	Transcribe stage.Handler
	Cut        stage.Handler
	Upload     stage.Handler
}

// RunDeps are the per-run values stage handlers are built from.
type RunDeps struct {
	Store  *state.Store
	Sink   *notifications.Sink
	Source source.Provider
}

// StageFactory builds the handlers for a run once its state store is open.
type StageFactory func(RunDeps) (Stages, error)

// Request describes one invocation.
type Request struct {
	Source       source.Provider
	Mode         Mode
	ManifestPath string
}

// Manager runs requests through the stage plan of their mode.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	sink      *notifications.Sink
	factory   StageFactory
	preflight bool
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPreflight runs local readiness checks before the first stage.
func WithPreflight(enabled bool) ManagerOption {
	return func(m *Manager) { m.preflight = enabled }
}

// NewManager constructs a workflow manager. The sink is shared by every run
// and owned by the caller.
func NewManager(cfg *config.Config, factory StageFactory, sink *notifications.Sink, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "workflow-manager"),
		sink:    sink,
		factory: factory,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes req. The returned error is non-nil exactly when the outcome
// is OutcomeFailed; paused and partial runs return a nil error.
func (m *Manager) Run(ctx context.Context, req Request) (Result, error) {
	mode := req.Mode
	if mode == "" {
		mode = ModeFull
	}
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	result := Result{RunID: runID, Mode: mode}
	fail := func(err error) (Result, error) {
		result.Outcome = OutcomeFailed
		result.Message = err.Error()
		return result, err
	}

	if req.Source == nil {
		return fail(services.Wrap(services.ErrSource, string(stage.Ingest), "resolve source", "no source given", nil))
	}
	if err := m.runPreflight(ctx, mode.plan()); err != nil {
		return fail(err)
	}

	desc, err := req.Source.Describe(ctx)
	if err != nil {
		return fail(&StageError{Stage: stage.Ingest, Err: services.Wrap(services.ErrSource, string(stage.Ingest), "describe source", "", err)})
	}
	result.VideoName = desc.VideoName

	layout, err := workdir.ForVideo(m.cfg.Paths.WorkRoot, desc.VideoName)
	if err != nil {
		return fail(services.Wrap(services.ErrSource, string(stage.Ingest), "derive slug", "", err))
	}
	result.Slug = layout.Slug
	ctx = services.WithSlug(ctx, layout.Slug)
	logger := logging.WithContext(ctx, m.logger)

	if err := layout.Ensure(); err != nil {
		return fail(err)
	}
	lock, err := workdir.Acquire(layout)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release work directory lock failed", logging.Error(err))
		}
	}()

	store, err := state.Open(ctx, layout.StatePath(), layout.Slug)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	st, err := store.Update(ctx, func(cur *state.PipelineState) error {
		cur.VideoName = desc.VideoName
		cur.Source = desc.Ref
		cur.RunID = runID
		return nil
	})
	if err != nil {
		return fail(fmt.Errorf("record source: %w", err))
	}

	stages, err := m.factory(RunDeps{Store: store, Sink: m.sink, Source: req.Source})
	if err != nil {
		return fail(err)
	}
	if err := m.checkStages(ctx, stages, mode.plan()); err != nil {
		return fail(err)
	}

	r := &run{
		m:      m,
		store:  store,
		stages: stages,
		layout: layout,
		plan:   mode.plan(),
		req:    req,
		logger: logger,
		state:  st,
		result: &result,
	}

	logger.Info("run started",
		logging.EventType("run_start"),
		logging.String("mode", string(mode)),
		logging.String("video", desc.VideoName),
		logging.String("source_kind", string(desc.Ref.Kind)),
		logging.String("recorded_stage", st.Stage.String()),
		logging.String("effective_stage", r.effective(ctx).String()),
	)

	runErr := r.execute(ctx)
	result.Recorded = r.state.Stage
	result.Effective = r.effective(ctx)
	if runErr != nil {
		if errors.Is(runErr, errPaused) {
			return result, nil
		}
		return fail(runErr)
	}

	if len(result.Failures) > 0 {
		result.Outcome = OutcomePartial
	} else {
		result.Outcome = OutcomeCompleted
	}
	m.runCompleted(logger, result)
	return result, nil
}
