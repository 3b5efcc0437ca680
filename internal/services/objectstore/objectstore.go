package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clipper/internal/services"
)

const defaultLinkExpiry = 7 * 24 * time.Hour

// Config addresses one bucket on an S3-compatible endpoint.
type Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	Prefix     string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	LinkExpiry time.Duration
}

// Object describes an uploaded object.
type Object struct {
	Key  string
	Size int64
	ETag string
	Link string
}

// Client uploads files to a bucket and hands out presigned links.
type Client struct {
	api    *minio.Client
	bucket string
	prefix string
	expiry time.Duration
}

// New builds a client. It does not contact the endpoint.
func New(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "s3 client", "endpoint is required", nil)
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "s3 client", "bucket is required", nil)
	}
	api, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "upload", "s3 client", endpoint, err)
	}
	expiry := cfg.LinkExpiry
	if expiry <= 0 {
		expiry = defaultLinkExpiry
	}
	return &Client{
		api:    api,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		expiry: expiry,
	}, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.bucket }

// Key joins parts under the configured prefix.
func (c *Client) Key(parts ...string) string {
	all := append([]string{c.prefix}, parts...)
	return strings.TrimPrefix(path.Join(all...), "/")
}

// EnsureBucket creates the bucket when it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.api.BucketExists(ctx, c.bucket)
	if err != nil {
		return classify("check bucket", c.bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.api.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return classify("create bucket", c.bucket, err)
	}
	return nil
}

// Put uploads localPath as key and returns it with a presigned link.
func (c *Client) Put(ctx context.Context, key, localPath, contentType string) (Object, error) {
	info, err := c.api.FPutObject(ctx, c.bucket, key, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, classify("put object", key, err)
	}
	link, err := c.Link(ctx, key)
	if err != nil {
		return Object{}, err
	}
	return Object{Key: key, Size: info.Size, ETag: info.ETag, Link: link}, nil
}

// Link returns a presigned GET URL for key.
func (c *Client) Link(ctx context.Context, key string) (string, error) {
	u, err := c.api.PresignedGetObject(ctx, c.bucket, key, c.expiry, url.Values{})
	if err != nil {
		return "", classify("presign", key, err)
	}
	return u.String(), nil
}

// Location renders the bucket URL for a key prefix.
func (c *Client) Location(keyPrefix string) string {
	base := c.api.EndpointURL()
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base.String(), "/"), c.bucket, strings.Trim(keyPrefix, "/"))
}

func classify(operation, subject string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode == 401 || resp.StatusCode == 403 || resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch":
		return services.Wrap(services.ErrConfiguration, "upload", operation, "object store rejected the credentials", errors.Join(services.ErrUpload, err))
	case resp.StatusCode == 429 || resp.StatusCode >= 500:
		return services.Wrap(services.ErrUpload, "upload", operation, subject, errors.Join(services.ErrTransient, err))
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrUpload, "upload", operation, subject, errors.Join(services.ErrTimeout, err))
	}
	return services.Wrap(services.ErrUpload, "upload", operation, subject, err)
}
