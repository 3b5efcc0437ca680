package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

const encodersListing = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3) (codec mp3)
`

func writeFakeFFmpeg(t *testing.T, listing string) string {
	t.Helper()
	dir := t.TempDir()
	listingPath := filepath.Join(dir, "listing.txt")
	if err := os.WriteFile(listingPath, []byte(listing), 0o644); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\ncat '" + listingPath + "'\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestCheckFFmpegEncoders(t *testing.T) {
	bin := writeFakeFFmpeg(t, encodersListing)
	status := CheckFFmpegEncoders(context.Background(), bin, Encoders...)
	if !status.Available {
		t.Fatalf("expected encoders available, got %q", status.Detail)
	}

	status = CheckFFmpegEncoders(context.Background(), bin, "libx264", "libsvtav1")
	if status.Available || status.Detail != "missing libsvtav1" {
		t.Fatalf("expected missing libsvtav1, got %#v", status)
	}
}

func TestCheckFFmpegEncodersMissingBinary(t *testing.T) {
	status := CheckFFmpegEncoders(context.Background(), filepath.Join(t.TempDir(), "ffmpeg"), Encoders...)
	if status.Available || status.Detail == "" {
		t.Fatalf("expected unavailable status, got %#v", status)
	}
}

func TestParseEncodersSkipsLegend(t *testing.T) {
	got := parseEncoders(encodersListing)
	if _, ok := got["Video"]; ok {
		t.Fatal("legend rows must not be parsed as encoders")
	}
	if _, ok := got["libmp3lame"]; !ok {
		t.Fatal("expected libmp3lame parsed")
	}
}
