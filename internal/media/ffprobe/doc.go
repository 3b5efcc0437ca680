// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes streams and format metadata; Duration is
// the shortcut ingest uses to record the source length that manifest
// validation bounds clip times against. VideoHeight feeds the preview
// downscale decision for chat notifications.
package ffprobe
