package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Encoders clipper needs from the ffmpeg build: H.264 for clips and LAME for
// the transcription audio track.
var Encoders = []string{"libx264", "aac", "libmp3lame"}

const encoderProbeTimeout = 10 * time.Second

// ResolveBinary returns the absolute path for command, or command unchanged
// when it cannot be resolved.
func ResolveBinary(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return ""
	}
	if resolved, err := exec.LookPath(command); err == nil {
		return resolved
	}
	return command
}

// CheckFFmpegEncoders runs "ffmpeg -encoders" and reports whether every
// named encoder is compiled in.
func CheckFFmpegEncoders(ctx context.Context, ffmpeg string, encoders ...string) Status {
	status := Lookup(Requirement{
		Name:        "FFmpeg encoders",
		Command:     ffmpeg,
		Description: "Required encoders: " + strings.Join(encoders, ", "),
	})
	if !status.Available {
		return status
	}
	status.Available = false

	probeCtx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()
	var stdout bytes.Buffer
	cmd := exec.CommandContext(probeCtx, status.Path, "-hide_banner", "-encoders")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		status.Detail = fmt.Sprintf("list encoders: %v", err)
		return status
	}

	available := parseEncoders(stdout.String())
	var missing []string
	for _, name := range encoders {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		status.Detail = "missing " + strings.Join(missing, ", ")
		return status
	}
	status.Available = true
	return status
}

// parseEncoders collects encoder names from "ffmpeg -encoders" output, whose
// rows look like " V..... libx264   libx264 H.264 ...".
func parseEncoders(output string) map[string]struct{} {
	out := map[string]struct{}{}
	pastHeader := false
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if !pastHeader {
			if strings.HasPrefix(fields[0], "---") {
				pastHeader = true
			}
			continue
		}
		out[fields[1]] = struct{}{}
	}
	return out
}
