package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clipper/internal/config"
	"clipper/internal/media/ffmpeg"
	"clipper/internal/media/ffprobe"
	"clipper/internal/notifications"
	"clipper/internal/workdir"
)

// NewPreviewer returns a Telegram preview function that writes a downscaled
// copy of each clip into the preview directory beside it. An existing preview
// is reused.
func NewPreviewer(cfg *config.Config, runner ffmpeg.Runner) notifications.PreviewFunc {
	tool := ffmpeg.New(cfg.FFmpegBinary(), ffmpeg.WithRunner(runner))
	maxHeight := cfg.Notifications.PreviewHeight
	return func(ctx context.Context, clipPath string) (string, error) {
		dir := filepath.Join(filepath.Dir(clipPath), workdir.PreviewDirName)
		output := filepath.Join(dir, filepath.Base(clipPath))
		if info, err := os.Stat(output); err == nil && info.Size() > 0 {
			return output, nil
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create preview dir: %w", err)
		}
		height := 0
		if probe, err := ffprobe.Inspect(ctx, cfg.FFprobeBinary(), clipPath); err == nil {
			height = probe.VideoHeight()
		}
		if err := tool.Preview(ctx, clipPath, output, maxHeight, height); err != nil {
			return "", err
		}
		return output, nil
	}
}
