package workflow

import (
	"fmt"
	"log/slog"
	"strings"

	"clipper/internal/logging"
	"clipper/internal/notifications"
)

func (m *Manager) runCompleted(logger *slog.Logger, result Result) {
	summary := summarize(result)
	logger.Info("run completed",
		logging.EventType("run_complete"),
		logging.String("outcome", string(result.Outcome)),
		logging.String("recorded_stage", result.Recorded.String()),
		logging.Int("failures", len(result.Failures)),
		logging.String("summary", summary),
	)
	for _, f := range result.Failures {
		logging.WarnWithContext(logger, "unit failed", "run_unit_failed",
			logging.String("unit", f.Unit),
			logging.Error(f.Err),
			logging.String(logging.FieldErrorHint, "re-run the same mode to retry only failed units"),
			logging.String(logging.FieldImpact, "output missing for this unit"),
		)
	}
	m.sink.Send(notifications.EventRunCompleted, notifications.Payload{
		notifications.KeyVideoName: result.VideoName,
		notifications.KeyRunID:     result.RunID,
		notifications.KeySummary:   summary,
		notifications.KeyFailed:    len(result.Failures),
	})
}

func summarize(result Result) string {
	parts := []string{fmt.Sprintf("mode %s", result.Mode)}
	if len(result.Executed) > 0 {
		names := make([]string, 0, len(result.Executed))
		for _, n := range result.Executed {
			names = append(names, string(n))
		}
		parts = append(parts, "ran "+strings.Join(names, ", "))
	}
	if len(result.Skipped) > 0 {
		names := make([]string, 0, len(result.Skipped))
		for _, n := range result.Skipped {
			names = append(names, string(n))
		}
		parts = append(parts, "skipped "+strings.Join(names, ", "))
	}
	if len(result.Failures) > 0 {
		units := make([]string, 0, len(result.Failures))
		for _, f := range result.Failures {
			units = append(units, f.Unit)
		}
		parts = append(parts, "failed "+strings.Join(units, ", "))
	}
	return strings.Join(parts, "; ")
}
