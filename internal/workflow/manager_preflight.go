package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/preflight"
	"clipper/internal/services"
	"clipper/internal/stage"
)

const dryRunTimeout = 30 * time.Second

// runPreflight validates local readiness before the first stage.
// Returns nil when all checks pass, or an error describing all failures.
func (m *Manager) runPreflight(ctx context.Context, p plan) error {
	if !m.preflight {
		return nil
	}
	logger := logging.WithContext(ctx, m.logger)
	results := preflight.RunAll(ctx, m.cfg, preflight.Needs{
		Transcription: p.transcribe,
		Cutting:       p.cut,
		Upload:        p.upload && m.cfg.Upload.Provider != "",
	})

	var failures []string
	for _, r := range results {
		if r.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.EventType("preflight_passed"),
			)
			continue
		}
		logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "fix the reported issue and re-run"),
		)
		failures = append(failures, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failures) > 0 {
		return services.Wrap(services.ErrConfiguration, "", "preflight", strings.Join(failures, "; "), nil)
	}
	return nil
}

// checkStages asks the handlers a run will use whether they can run. Like
// runPreflight it only runs when preflight is enabled.
func (m *Manager) checkStages(ctx context.Context, stages Stages, p plan) error {
	if !m.preflight {
		return nil
	}
	handlers := []stage.Handler{stages.Ingest}
	if p.transcribe {
		handlers = append(handlers, stages.Transcribe)
	}
	if p.cut {
		handlers = append(handlers, stages.Cut)
	}
	if p.upload {
		handlers = append(handlers, stages.Upload)
	}
	var errs []error
	for _, h := range stage.CheckAll(ctx, handlers...) {
		if err := h.Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return services.Wrap(services.ErrConfiguration, "", "stage health", "", errors.Join(errs...))
	}
	return nil
}

// DryRunDeps are the remote collaborators a dry run exercises. Nil fields
// are skipped.
type DryRunDeps struct {
	Drive    preflight.DriveLister
	Notifier notifications.Notifier
}

// DryRun checks configuration and connectivity without touching any work
// directory: recent Drive files, the AssemblyAI key, the ffmpeg toolchain,
// and a test notification.
func (m *Manager) DryRun(ctx context.Context, deps DryRunDeps) []preflight.Result {
	ctx, cancel := context.WithTimeout(ctx, dryRunTimeout)
	defer cancel()

	results := []preflight.Result{preflight.CheckTranscriptionKey(m.cfg)}
	for _, status := range preflight.CheckSystemDeps(ctx, m.cfg) {
		r := preflight.Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if status.Available {
			r.Detail = status.Path
		}
		results = append(results, r)
	}
	if deps.Drive != nil {
		results = append(results, preflight.CheckDrive(ctx, deps.Drive, 3))
	}
	results = append(results, preflight.CheckNotifier(ctx, deps.Notifier, "dry run"))

	logger := logging.WithContext(ctx, m.logger)
	for _, r := range results {
		logger.Info("dry run check",
			logging.EventType("dry_run_check"),
			logging.String("check", r.Name),
			logging.Bool("passed", r.Passed),
			logging.String("detail", r.Detail),
		)
	}
	return results
}
