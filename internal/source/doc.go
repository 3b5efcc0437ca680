// Package source resolves where a video comes from (a local file or a Drive
// file) and materializes it inside the work directory.
package source
