// Package objectstore uploads clips to S3-compatible storage (AWS S3,
// MinIO) through minio-go and returns presigned download links.
package objectstore
