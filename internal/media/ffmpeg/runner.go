package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"clipper/internal/services"
)

const stderrTail = 300

// Runner executes one external command to completion.
type Runner interface {
	Run(ctx context.Context, binary string, args ...string) error
}

// ExecRunner runs commands with os/exec and reports the tail of stderr on
// failure.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, binary string, args ...string) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			marker := services.ErrExternalTool
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				marker = services.ErrTimeout
			}
			return services.Wrap(marker, "", binary, "command did not finish", ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, "", binary, tail(stderr.String(), stderrTail), err)
	}
	return nil
}

func tail(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	return "..." + text[len(text)-limit:]
}
