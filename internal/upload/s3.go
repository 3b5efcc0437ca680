package upload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"clipper/internal/services/drive"
	"clipper/internal/services/objectstore"
	"clipper/internal/state"
)

// ObjectStore is the subset of objectstore.Client the uploader uses.
type ObjectStore interface {
	Key(parts ...string) string
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key, localPath, contentType string) (objectstore.Object, error)
	Location(keyPrefix string) string
}

// S3 publishes clips under <prefix>/<slug>/ in an S3-compatible bucket.
// Objects are shared through presigned links, so Publish only reports the
// prefix location.
type S3 struct {
	Store ObjectStore
}

func (s *S3) Provider() string { return "s3" }

func (s *S3) Prepare(ctx context.Context, st *state.PipelineState) (Destination, error) {
	if err := s.Store.EnsureBucket(ctx); err != nil {
		return Destination{}, fmt.Errorf("prepare bucket: %w", err)
	}
	prefix := s.Store.Key(st.Slug)
	return Destination{ID: prefix, Name: prefix, Link: s.Store.Location(prefix)}, nil
}

func (s *S3) Put(ctx context.Context, dest Destination, localPath string) (Remote, error) {
	key := path.Join(dest.ID, filepath.Base(localPath))
	obj, err := s.Store.Put(ctx, key, localPath, drive.MimeType(localPath))
	if err != nil {
		return Remote{}, err
	}
	return Remote{ID: obj.Key, Link: obj.Link}, nil
}

func (s *S3) Publish(_ context.Context, dest Destination) (string, error) {
	return dest.Link, nil
}

func (s *S3) HealthCheck(ctx context.Context) error {
	return s.Store.EnsureBucket(ctx)
}
