package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clipper/internal/logging"
	"clipper/internal/notifications"
	"clipper/internal/services"
	"clipper/internal/stage"
	"clipper/internal/state"
)

// Options controls one stage execution.
type Options struct {
	Logger  *slog.Logger
	Store   *state.Store
	Sink    *notifications.Sink
	Handler stage.Handler
	Input   stage.Input
}

// Run executes a stage handler against a private copy of the input state.
// On success the handler's state is persisted with its advanced stage and
// only then is completion reported. On failure nothing the handler changed
// is persisted as completed, an error event is queued, and the handler's
// error is returned.
func Run(ctx context.Context, opts Options) (stage.Output, error) {
	if opts.Handler == nil {
		return stage.Output{}, fmt.Errorf("stage handler unavailable")
	}
	if opts.Store == nil {
		return stage.Output{}, fmt.Errorf("state store is required")
	}
	if opts.Input.State == nil {
		return stage.Output{}, fmt.Errorf("pipeline state is required")
	}

	name := string(opts.Handler.Name())
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	videoName := strings.TrimSpace(opts.Input.State.VideoName)
	stageLogger.Info(
		"stage started",
		logging.EventType("stage_start"),
		logging.String("recorded_stage", opts.Input.State.Stage.String()),
		logging.String("video", videoName),
	)
	opts.Sink.Send(notifications.EventStageStarted, notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyStage:     name,
	})

	in := opts.Input
	in.State = opts.Input.State.Clone()
	started := time.Now()

	out, err := opts.Handler.Execute(stageCtx, in)
	if err != nil {
		return stage.Output{}, handleFailure(stageLogger, opts.Sink, name, videoName, err)
	}

	result := out.State
	if result == nil {
		result = in.State
	}
	if !result.AdvanceStep(out.Advance) {
		logging.WarnWithContext(stageLogger, "stage result would skip an unfinished stage; recorded stage kept", "stage_advance_refused",
			logging.String("recorded_stage", result.Stage.String()),
			logging.String("requested_stage", out.Advance.String()),
			logging.String(logging.FieldImpact, "the stage re-runs once the earlier stage completes"),
		)
	}
	if err := opts.Store.Save(stageCtx, result); err != nil {
		return stage.Output{}, fmt.Errorf("persist %s result: %w", name, err)
	}
	out.State = result

	stageLogger.Info(
		"stage completed",
		logging.EventType("stage_complete"),
		logging.String("recorded_stage", result.Stage.String()),
		logging.Int("failures", len(out.Failures)),
		logging.String("summary", out.Summary),
		logging.Duration("elapsed", time.Since(started)),
	)
	opts.Sink.Send(notifications.EventStageCompleted, notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyStage:     name,
		notifications.KeyDetail:    out.Summary,
		notifications.KeyFailed:    len(out.Failures),
	})
	return out, nil
}

func handleFailure(logger *slog.Logger, sink *notifications.Sink, stageName, videoName string, stageErr error) error {
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("error_kind", services.Kind(stageErr)),
		logging.Bool("retryable", services.Retryable(stageErr)),
		logging.Error(stageErr),
		logging.String(logging.FieldErrorHint, hintFor(stageErr)),
	)
	sink.Send(notifications.EventError, notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyStage:     stageName,
		notifications.KeyError:     stageErr.Error(),
	})
	return stageErr
}

func hintFor(err error) string {
	switch services.Kind(err) {
	case "source":
		return "check the source path or Drive link and credentials"
	case "transcription":
		return "check the AssemblyAI key and quota, then re-run"
	case "manifest":
		return "fix the clip manifest and re-run"
	case "upload":
		return "check upload provider credentials, then re-run with --upload-only"
	case "configuration":
		return "run clipper config show to inspect settings"
	}
	if services.Retryable(err) {
		return "transient failure; re-run to resume"
	}
	return "check logs for details"
}
