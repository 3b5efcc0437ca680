package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"clipper/internal/fileutil"
	"clipper/internal/services"
	"clipper/internal/services/drive"
	"clipper/internal/state"
)

// Descriptor identifies a source before anything is fetched.
type Descriptor struct {
	Ref       state.SourceRef
	VideoName string
	Size      int64
}

// Provider resolves and materializes a source video.
type Provider interface {
	Describe(ctx context.Context) (Descriptor, error)
	// Fetch places the video at dest.
	Fetch(ctx context.Context, dest string) error
}

// Local is a video already on this machine.
type Local struct {
	Path string
}

// Describe implements Provider.
func (l Local) Describe(context.Context) (Descriptor, error) {
	abs, err := filepath.Abs(strings.TrimSpace(l.Path))
	if err != nil {
		return Descriptor{}, services.Wrap(services.ErrSource, "ingest", "resolve path", l.Path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Descriptor{}, services.Wrap(services.ErrSource, "ingest", "stat source", abs, err)
	}
	if !info.Mode().IsRegular() {
		return Descriptor{}, services.Wrap(services.ErrSource, "ingest", "stat source", abs+" is not a regular file", nil)
	}
	return Descriptor{
		Ref:       state.SourceRef{Kind: state.SourceLocal, Locator: abs},
		VideoName: filepath.Base(abs),
		Size:      info.Size(),
	}, nil
}

// Fetch symlinks the video into place, falling back to a verified copy
// where symlinks are unavailable.
func (l Local) Fetch(_ context.Context, dest string) error {
	abs, err := filepath.Abs(strings.TrimSpace(l.Path))
	if err != nil {
		return services.Wrap(services.ErrSource, "ingest", "resolve path", l.Path, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("replace %s: %w", dest, err)
	}
	if err := os.Symlink(abs, dest); err == nil {
		return nil
	}
	if err := fileutil.CopyFileVerified(abs, dest); err != nil {
		return services.Wrap(services.ErrSource, "ingest", "copy source", abs, err)
	}
	return nil
}

// DriveClient is the part of the Drive service a Drive source needs.
type DriveClient interface {
	Metadata(ctx context.Context, id string) (drive.File, error)
	Download(ctx context.Context, id, dest string) (int64, error)
}

// Drive is a video referenced by a Drive share URL or file id.
type Drive struct {
	Client  DriveClient
	Locator string
}

// Describe implements Provider.
func (d Drive) Describe(ctx context.Context) (Descriptor, error) {
	id, err := ExtractFileID(d.Locator)
	if err != nil {
		return Descriptor{}, err
	}
	if d.Client == nil {
		return Descriptor{}, services.Wrap(services.ErrConfiguration, "ingest", "drive source", "drive client not configured", nil)
	}
	meta, err := d.Client.Metadata(ctx, id)
	if err != nil {
		return Descriptor{}, services.Wrap(services.ErrSource, "ingest", "describe drive file", id, err)
	}
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = id + ".mp4"
	}
	return Descriptor{
		Ref: state.SourceRef{
			Kind:     state.SourceDrive,
			Locator:  d.Locator,
			FileID:   id,
			ParentID: meta.Parent(),
		},
		VideoName: name,
		Size:      meta.Size,
	}, nil
}

// Fetch implements Provider.
func (d Drive) Fetch(ctx context.Context, dest string) error {
	id, err := ExtractFileID(d.Locator)
	if err != nil {
		return err
	}
	if d.Client == nil {
		return services.Wrap(services.ErrConfiguration, "ingest", "drive source", "drive client not configured", nil)
	}
	if _, err := d.Client.Download(ctx, id, dest); err != nil {
		return services.Wrap(services.ErrSource, "ingest", "download", id, err)
	}
	return nil
}

var (
	pathIDPattern  = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	queryIDPattern = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	rawIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]{11,}$`)
)

// ExtractFileID accepts /d/<id> and ?id=<id> URLs or a bare file id.
func ExtractFileID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if m := pathIDPattern.FindStringSubmatch(locator); m != nil {
		return m[1], nil
	}
	if m := queryIDPattern.FindStringSubmatch(locator); m != nil {
		return m[1], nil
	}
	if rawIDPattern.MatchString(locator) {
		return locator, nil
	}
	return "", services.Wrap(services.ErrSource, "ingest", "parse drive locator", fmt.Sprintf("cannot extract file id from %q", locator), nil)
}
