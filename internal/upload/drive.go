package upload

import (
	"context"
	"fmt"

	"clipper/internal/services/drive"
	"clipper/internal/state"
)

// DriveAPI is the subset of drive.Service the uploader uses.
type DriveAPI interface {
	EnsureFolder(ctx context.Context, name, parentID string) (drive.File, error)
	Upload(ctx context.Context, localPath, parentID string) (drive.File, error)
	MakePublic(ctx context.Context, id string) error
	ListRecent(ctx context.Context, n int64) ([]drive.File, error)
}

// Drive publishes clips into a Google Drive folder.
type Drive struct {
	API        DriveAPI
	MakePublic bool
}

func (d *Drive) Provider() string { return "drive" }

// Prepare places clips in a "clips" subfolder of the source's parent when
// the video came from Drive, and in a top-level "<video> – Clips" folder
// otherwise.
func (d *Drive) Prepare(ctx context.Context, st *state.PipelineState) (Destination, error) {
	name, parent := FolderName(st.VideoName), ""
	if st.Source.Kind == state.SourceDrive && st.Source.ParentID != "" {
		name, parent = DriveClipsFolder, st.Source.ParentID
	}
	folder, err := d.API.EnsureFolder(ctx, name, parent)
	if err != nil {
		return Destination{}, fmt.Errorf("prepare drive folder %q: %w", name, err)
	}
	return Destination{ID: folder.ID, Name: name, Link: drive.FolderLink(folder.ID)}, nil
}

func (d *Drive) Put(ctx context.Context, dest Destination, localPath string) (Remote, error) {
	file, err := d.API.Upload(ctx, localPath, dest.ID)
	if err != nil {
		return Remote{}, err
	}
	return Remote{ID: file.ID, Link: file.WebViewLink}, nil
}

func (d *Drive) Publish(ctx context.Context, dest Destination) (string, error) {
	if d.MakePublic {
		if err := d.API.MakePublic(ctx, dest.ID); err != nil {
			return "", err
		}
	}
	return dest.Link, nil
}

// HealthCheck lists a single recent file to prove the credentials work.
func (d *Drive) HealthCheck(ctx context.Context) error {
	_, err := d.API.ListRecent(ctx, 1)
	return err
}
