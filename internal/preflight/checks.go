package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"clipper/internal/config"
	"clipper/internal/deps"
	"clipper/internal/notifications"
	"clipper/internal/services/drive"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the ffmpeg toolchain. Both run preflight and the
// status command use it so the requirement list lives in one place.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for audio extraction and cutting",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for duration and preview probes",
		},
	})
	if statuses[0].Available {
		statuses = append(statuses, deps.CheckFFmpegEncoders(ctx, cfg.FFmpegBinary(), deps.Encoders...))
	}
	return statuses
}

// CheckTranscriptionKey reports whether an AssemblyAI key is configured.
func CheckTranscriptionKey(cfg *config.Config) Result {
	const name = "AssemblyAI"
	if strings.TrimSpace(cfg.Transcription.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing (set ASSEMBLYAI_API_KEY)"}
	}
	return Result{Name: name, Passed: true, Detail: "API key present"}
}

// CheckUploadConfig validates the selected upload provider's local
// prerequisites.
func CheckUploadConfig(cfg *config.Config) Result {
	switch cfg.Upload.Provider {
	case "":
		return Result{Name: "Upload", Passed: true, Detail: "Disabled (clips stay local)"}
	case "drive":
		if _, err := os.Stat(cfg.Drive.ClientSecretPath); err != nil {
			return Result{Name: "Google Drive", Detail: fmt.Sprintf("client secret %s unreadable", cfg.Drive.ClientSecretPath)}
		}
		if _, err := os.Stat(cfg.Drive.TokenPath); err != nil {
			return Result{Name: "Google Drive", Detail: "no token; run clipper drive auth"}
		}
		return Result{Name: "Google Drive", Passed: true, Detail: "credentials present"}
	case "s3":
		if cfg.S3.AccessKey == "" || cfg.S3.SecretKey == "" {
			return Result{Name: "S3", Detail: "access key or secret key missing"}
		}
		return Result{Name: "S3", Passed: true, Detail: fmt.Sprintf("%s/%s", cfg.S3.Endpoint, cfg.S3.Bucket)}
	default:
		return Result{Name: "Upload", Detail: fmt.Sprintf("unknown provider %q", cfg.Upload.Provider)}
	}
}

// DriveLister is the part of the Drive client the connectivity check uses.
type DriveLister interface {
	ListRecent(ctx context.Context, n int64) ([]drive.File, error)
}

// CheckDrive lists the n most recent files to prove Drive credentials work.
func CheckDrive(ctx context.Context, client DriveLister, n int64) Result {
	const name = "Google Drive"
	if client == nil {
		return Result{Name: name, Detail: "client unavailable"}
	}
	files, err := client.ListRecent(ctx, n)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	detail := fmt.Sprintf("%d recent files", len(files))
	if len(names) > 0 {
		detail += ": " + strings.Join(names, ", ")
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckNotifier publishes a test event through notifier.
func CheckNotifier(ctx context.Context, notifier notifications.Notifier, videoName string) Result {
	const name = "Notifications"
	if notifier == nil {
		return Result{Name: name, Passed: true, Detail: "No channel configured"}
	}
	if _, ok := notifier.(notifications.Noop); ok {
		return Result{Name: name, Passed: true, Detail: "No channel configured"}
	}
	err := notifier.Publish(ctx, notifications.EventTest, notifications.Payload{
		notifications.KeyVideoName: videoName,
		notifications.KeyDetail:    "clipper dry run",
	})
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "test message sent"}
}

// summarizeError produces a human-readable summary for connectivity failures.
func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
