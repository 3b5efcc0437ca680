package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"clipper/internal/fileutil"
	"clipper/internal/services"
)

const defaultPreSeek = 2.0

// Tool builds and runs ffmpeg invocations for cutting, audio extraction and
// preview encoding. Every output is written to a .part file and renamed once
// ffmpeg exits cleanly, so an existing output path is always complete.
type Tool struct {
	binary  string
	runner  Runner
	preSeek float64
}

// Option customizes a Tool.
type Option func(*Tool)

// WithRunner swaps the command runner; tests use it to avoid real ffmpeg.
func WithRunner(r Runner) Option {
	return func(t *Tool) {
		if r != nil {
			t.runner = r
		}
	}
}

// WithPreSeek sets how far before the clip start the fast input seek lands.
func WithPreSeek(seconds float64) Option {
	return func(t *Tool) {
		if seconds >= 0 {
			t.preSeek = seconds
		}
	}
}

// New returns a Tool that executes binary (default "ffmpeg").
func New(binary string, opts ...Option) *Tool {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	t := &Tool{binary: binary, runner: ExecRunner{}, preSeek: defaultPreSeek}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Binary returns the ffmpeg executable name or path.
func (t *Tool) Binary() string { return t.binary }

// CutSpec describes one clip variant to render.
type CutSpec struct {
	Source   string
	Output   string
	Start    float64
	End      float64
	Vertical bool
	// CropX anchors the 9:16 window; nil centres it.
	CropX  *int
	CRF    int
	Width  int
	Height int
}

// Cut renders spec.Output from spec.Source.
func (t *Tool) Cut(ctx context.Context, spec CutSpec) error {
	if spec.End <= spec.Start {
		return services.Wrap(services.ErrValidation, "cut", "ffmpeg cut", fmt.Sprintf("invalid range %.3f-%.3f", spec.Start, spec.End), nil)
	}
	part := fileutil.PartPath(spec.Output)
	args := CutArgs(spec, t.preSeek, part)
	return t.runToPart(ctx, args, part, spec.Output)
}

// CutArgs builds the two-pass seek command: a fast input seek that lands
// preSeek seconds early, then an accurate output seek for the remainder.
func CutArgs(spec CutSpec, preSeek float64, output string) []string {
	inputSeek := math.Max(0, spec.Start-preSeek)
	fineSeek := spec.Start - inputSeek
	duration := spec.End - spec.Start

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-ss", formatSeconds(inputSeek),
		"-i", spec.Source,
		"-ss", formatSeconds(fineSeek),
		"-t", formatSeconds(duration),
	}
	if spec.Vertical {
		args = append(args, "-vf", VerticalFilter(spec.CropX, spec.Width, spec.Height))
	}
	args = append(args,
		"-c:v", "libx264", "-c:a", "aac",
		"-crf", strconv.Itoa(spec.CRF),
		"-avoid_negative_ts", "make_zero",
		"-f", "mp4",
		output,
	)
	return args
}

// VerticalFilter returns the 9:16 crop-and-scale filter.
func VerticalFilter(cropX *int, width, height int) string {
	if width <= 0 {
		width = 1080
	}
	if height <= 0 {
		height = 1920
	}
	x := "(iw-ih*9/16)/2"
	if cropX != nil {
		x = strconv.Itoa(*cropX)
	}
	return fmt.Sprintf("crop=ih*9/16:ih:%s:0,scale=%d:%d", x, width, height)
}

// ExtractAudio writes an MP3 of source's audio track to output.
func (t *Tool) ExtractAudio(ctx context.Context, source, output, bitrate string) error {
	if strings.TrimSpace(bitrate) == "" {
		bitrate = "128k"
	}
	part := fileutil.PartPath(output)
	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", source,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", bitrate,
		"-f", "mp3",
		part,
	}
	return t.runToPart(ctx, args, part, output)
}

// Preview re-encodes source at CRF 23, downscaling to maxHeight when
// sourceHeight is larger (or unknown, reported as 0).
func (t *Tool) Preview(ctx context.Context, source, output string, maxHeight, sourceHeight int) error {
	part := fileutil.PartPath(output)
	args := PreviewArgs(source, part, maxHeight, sourceHeight)
	return t.runToPart(ctx, args, part, output)
}

// PreviewArgs builds the preview command.
func PreviewArgs(source, output string, maxHeight, sourceHeight int) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", source}
	if maxHeight > 0 && (sourceHeight <= 0 || sourceHeight > maxHeight) {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", maxHeight))
	}
	return append(args, "-c:v", "libx264", "-c:a", "aac", "-crf", "23", "-f", "mp4", output)
}

func (t *Tool) runToPart(ctx context.Context, args []string, part, output string) error {
	_ = os.Remove(part)
	if err := t.runner.Run(ctx, t.binary, args...); err != nil {
		_ = os.Remove(part)
		return err
	}
	if !fileutil.Exists(part) {
		_ = os.Remove(part)
		return services.Wrap(services.ErrExternalTool, "", t.binary, "no output written to "+part, nil)
	}
	if err := os.Rename(part, output); err != nil {
		return fmt.Errorf("finalize %s: %w", output, err)
	}
	return nil
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
