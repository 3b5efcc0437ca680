package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"clipper/internal/fileutil"
	"clipper/internal/services"
)

const (
	// FolderMimeType marks Drive folders.
	FolderMimeType = "application/vnd.google-apps.folder"

	fileFields   = "id,name,mimeType,size,parents,webViewLink"
	uploadChunk  = 8 * 1024 * 1024
	folderURLFmt = "https://drive.google.com/drive/folders/%s"
)

// File is the subset of Drive file metadata clipper uses.
type File struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	Parents     []string
	WebViewLink string
}

// Parent returns the first parent folder id, if any.
func (f File) Parent() string {
	if len(f.Parents) == 0 {
		return ""
	}
	return f.Parents[0]
}

// Service wraps the Drive v3 API.
type Service struct {
	api *drive.Service
}

// New builds a Service from client options. Production callers pass an
// authorized HTTP client; tests pass an endpoint as well.
func New(ctx context.Context, opts ...option.ClientOption) (*Service, error) {
	api, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "drive", "init client", "", err)
	}
	return &Service{api: api}, nil
}

// NewFromConfig authorizes with the stored OAuth token and returns a
// Service. Refreshed tokens are written back to tokenPath.
func NewFromConfig(ctx context.Context, clientSecretPath, tokenPath string) (*Service, error) {
	client, err := AuthorizedClient(ctx, clientSecretPath, tokenPath)
	if err != nil {
		return nil, err
	}
	return New(ctx, option.WithHTTPClient(client))
}

// FolderLink returns the browser URL for a folder id.
func FolderLink(id string) string {
	return fmt.Sprintf(folderURLFmt, id)
}

// Metadata fetches a file's name, size and parents.
func (s *Service) Metadata(ctx context.Context, id string) (File, error) {
	f, err := s.api.Files.Get(id).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, classify("get metadata", id, err)
	}
	return fromAPI(f), nil
}

// Download streams a file's content to dest through a .part file. It
// returns the number of bytes written.
func (s *Service) Download(ctx context.Context, id, dest string) (int64, error) {
	resp, err := s.api.Files.Get(id).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return 0, classify("download", id, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}
	part := fileutil.PartPath(dest)
	out, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", part, err)
	}
	written, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(part)
		return 0, services.Wrap(services.ErrTransient, "drive", "download", id, errors.Join(copyErr, closeErr))
	}
	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("finalize download: %w", err)
	}
	return written, nil
}

// EnsureFolder returns the folder called name under parentID, creating it
// when no untrashed folder of that name exists. An empty parentID means the
// Drive root.
func (s *Service) EnsureFolder(ctx context.Context, name, parentID string) (File, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), FolderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}
	list, err := s.api.Files.List().
		Q(query).
		Fields("files(id,name,mimeType,parents,webViewLink)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, classify("find folder", name, err)
	}
	if len(list.Files) > 0 {
		return fromAPI(list.Files[0]), nil
	}

	meta := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := s.api.Files.Create(meta).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, classify("create folder", name, err)
	}
	return fromAPI(created), nil
}

// Upload sends a local file into parentID with a resumable upload.
func (s *Service) Upload(ctx context.Context, localPath, parentID string) (File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return File{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	meta := &drive.File{Name: filepath.Base(localPath)}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	created, err := s.api.Files.Create(meta).
		Media(f, googleapi.ContentType(MimeType(localPath)), googleapi.ChunkSize(uploadChunk)).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return File{}, classify("upload", meta.Name, err)
	}
	return fromAPI(created), nil
}

// MakePublic grants read access to anyone with the link.
func (s *Service) MakePublic(ctx context.Context, id string) error {
	_, err := s.api.Permissions.Create(id, &drive.Permission{Type: "anyone", Role: "reader"}).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return classify("share", id, err)
	}
	return nil
}

// ListRecent returns up to n recently modified files.
func (s *Service) ListRecent(ctx context.Context, n int64) ([]File, error) {
	list, err := s.api.Files.List().
		PageSize(n).
		OrderBy("modifiedTime desc").
		Fields("files(id,name,mimeType,size)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("list", "recent", err)
	}
	out := make([]File, 0, len(list.Files))
	for _, f := range list.Files {
		out = append(out, fromAPI(f))
	}
	return out, nil
}

// MimeType maps the extensions clipper uploads to content types.
func MimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".srt", ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}

func fromAPI(f *drive.File) File {
	if f == nil {
		return File{}
	}
	return File{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		Parents:     append([]string(nil), f.Parents...),
		WebViewLink: f.WebViewLink,
	}
}

func escapeQuery(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}

func classify(operation, subject string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound:
			return services.Wrap(services.ErrNotFound, "drive", operation, subject, err)
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "drive", operation, "rerun clipper drive auth", err)
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return services.Wrap(services.ErrTransient, "drive", operation, subject, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "drive", operation, subject, err)
	}
	return services.Wrap(services.ErrExternalTool, "drive", operation, subject, err)
}
