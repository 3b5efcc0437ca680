package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"clipper/internal/state"
	"clipper/internal/workflow"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

func renderStatusTable(statuses []workflow.Status, colorize bool) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		rows = append(rows, []string{
			s.Slug,
			s.VideoName,
			s.Recorded.String(),
			colorStage(s, colorize),
			fmt.Sprintf("%d/%d", s.ClipsDone, s.ClipsAll),
			fmt.Sprintf("%d", s.Uploads),
		})
	}
	return renderTable(
		[]string{"Slug", "Video", "Recorded", "Effective", "Clips", "Uploads"},
		rows, 5, 6,
	)
}

func renderStatusDetail(s workflow.Status, colorize bool) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %-12s %s\n", label+":", value)
		}
	}
	fmt.Fprintf(&b, "== %s ==\n", s.Slug)
	line("Video", s.VideoName)
	line("Work dir", s.Dir)
	line("Recorded", s.Recorded.String())
	line("Effective", colorStage(s, colorize))
	line("Manifest", s.Manifest)
	line("Clips", fmt.Sprintf("%d/%d cut", s.ClipsDone, s.ClipsAll))
	line("Uploads", fmt.Sprintf("%d", s.Uploads))
	line("Folder", s.Link)
	for _, e := range s.Errors {
		text := "  error: " + e
		if colorize {
			text = ansiRed + text + ansiReset
		}
		b.WriteString(text + "\n")
	}
	return b.String()
}

// colorStage highlights an effective stage that lags the recorded one,
// which means outputs went missing since the last run.
func colorStage(s workflow.Status, colorize bool) string {
	text := s.Effective.String()
	if !colorize {
		return text
	}
	switch {
	case s.Effective.Rank() < s.Recorded.Rank():
		return ansiYellow + text + ansiReset
	case s.Effective == state.StageUploaded:
		return ansiGreen + text + ansiReset
	default:
		return text
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
