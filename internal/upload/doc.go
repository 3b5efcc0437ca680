// Package upload is the final pipeline stage. It publishes every completed
// clip output plus the clip manifest through a storage provider (Google
// Drive or an S3-compatible bucket), records one UploadRecord per file, and
// reports the shareable destination link.
package upload
