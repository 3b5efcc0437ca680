package upload

import (
	"context"
	"path/filepath"
	"strings"

	"clipper/internal/state"
)

// Destination is the remote container clips land in: a Drive folder or an
// object key prefix.
type Destination struct {
	ID   string
	Name string
	Link string
}

// Remote describes one uploaded file.
type Remote struct {
	ID   string
	Link string
}

// Uploader is a storage provider the upload stage can publish clips to.
type Uploader interface {
	// Provider names the backend in logs and notifications.
	Provider() string
	// Prepare resolves or creates the destination for st.
	Prepare(ctx context.Context, st *state.PipelineState) (Destination, error)
	Put(ctx context.Context, dest Destination, localPath string) (Remote, error)
	// Publish makes dest shareable and returns the link to report.
	Publish(ctx context.Context, dest Destination) (string, error)
	HealthCheck(ctx context.Context) error
}

// FolderName is the top-level folder used for locally sourced videos.
func FolderName(videoName string) string {
	base := filepath.Base(videoName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + " – Clips"
}

// DriveClipsFolder is the subfolder created beside a Drive-hosted source.
const DriveClipsFolder = "clips"
