package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/notifications"
	"clipper/internal/preflight"
	"clipper/internal/services/drive"
	"clipper/internal/source"
	"clipper/internal/workflow"
)

type runOptions struct {
	local        string
	mode         string
	workers      int
	noVertical   bool
	manifestPath string
	dryRun       bool
	modeFlags    map[workflow.Mode]*bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	opts := &runOptions{modeFlags: map[workflow.Mode]*bool{}}

	cmd := &cobra.Command{
		Use:   "run [drive-url|file-id]",
		Short: "Run the clip pipeline for one video",
		Long: `Run the clip pipeline for one video.

The source is a Drive share URL or file id, or a local file given with
--local. Stages whose outputs already verify are skipped, so re-running the
same command resumes where the last run stopped. Without a clip manifest the
run pauses after transcription; write <name>_clips.json into the work
directory and run again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.local, "local", "", "Use a local video file instead of Drive")
	flags.StringVar(&opts.mode, "mode", "", fmt.Sprintf("Pipeline mode (%s)", modeList()))
	for _, mode := range workflow.Modes {
		if mode == workflow.ModeFull {
			continue
		}
		value := new(bool)
		opts.modeFlags[mode] = value
		flags.BoolVar(value, string(mode), false, fmt.Sprintf("Shorthand for --mode %s", mode))
	}
	flags.IntVar(&opts.workers, "workers", 0, "Concurrent cut jobs (overrides cutting.workers)")
	flags.BoolVar(&opts.noVertical, "no-vertical", false, "Skip the 9:16 vertical variants")
	flags.StringVar(&opts.manifestPath, "manifest", "", "Clip manifest path (default: discover in the work directory)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Check configuration and connectivity without processing")

	exclusive := []string{"mode"}
	for _, mode := range workflow.Modes {
		if mode != workflow.ModeFull {
			exclusive = append(exclusive, string(mode))
		}
	}
	cmd.MarkFlagsMutuallyExclusive(exclusive...)
	return cmd
}

func modeList() string {
	names := make([]string, 0, len(workflow.Modes))
	for _, m := range workflow.Modes {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

func (o *runOptions) resolveMode() (workflow.Mode, error) {
	for mode, set := range o.modeFlags {
		if *set {
			return mode, nil
		}
	}
	return workflow.ParseMode(o.mode)
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, opts *runOptions, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if opts.workers < 0 {
		return errors.New("--workers must be positive")
	}
	if opts.workers > 0 {
		cfg.Cutting.Workers = opts.workers
	}
	if opts.noVertical {
		cfg.Cutting.Vertical = false
	}
	mode, err := opts.resolveMode()
	if err != nil {
		return err
	}

	locator := ""
	if len(args) == 1 {
		locator = strings.TrimSpace(args[0])
	}
	local := strings.TrimSpace(opts.local)
	if !opts.dryRun {
		switch {
		case local != "" && locator != "":
			return errors.New("give either a Drive link or --local, not both")
		case local == "" && locator == "":
			return errors.New("a Drive link, file id, or --local path is required")
		}
	}

	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	runCtx := cmd.Context()

	var driveSvc *drive.Service
	if locator != "" || cfg.Upload.Provider == "drive" || opts.dryRun {
		driveSvc, err = ctx.driveClient(runCtx)
		if err != nil {
			return err
		}
		if driveSvc == nil && locator != "" && !opts.dryRun {
			return fmt.Errorf("no Drive token at %s; run `clipper drive auth` first", cfg.Drive.TokenPath)
		}
	}
	svc := workflow.Services{Drive: driveSvc}
	if cfg.Upload.Provider == "s3" {
		if svc.Objects, err = ctx.objectStore(); err != nil {
			return err
		}
	}

	sink := ctx.newSink(cfg, logger)
	defer closeSink(cfg, sink, logger)

	manager := workflow.NewManager(cfg, workflow.DefaultStages(cfg, svc, logger), sink, logger, workflow.WithPreflight(true))
	out := cmd.OutOrStdout()

	if opts.dryRun {
		deps := workflow.DryRunDeps{Notifier: notifications.New(cfg, logger)}
		if driveSvc != nil {
			deps.Drive = driveSvc
		}
		results := manager.DryRun(runCtx, deps)
		renderChecks(out, results)
		if failed := preflight.Failed(results); len(failed) > 0 {
			return &exitError{code: workflow.ExitFatal, err: fmt.Errorf("%d dry-run checks failed", len(failed))}
		}
		return nil
	}

	var provider source.Provider = source.Local{Path: local}
	if locator != "" {
		provider = source.Drive{Client: driveSvc, Locator: locator}
	}
	result, runErr := manager.Run(runCtx, workflow.Request{
		Source:       provider,
		Mode:         mode,
		ManifestPath: strings.TrimSpace(opts.manifestPath),
	})
	printResult(out, result)
	if runErr != nil {
		return &exitError{code: result.ExitCode(), err: runErr}
	}
	if code := result.ExitCode(); code != workflow.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

func printResult(out io.Writer, result workflow.Result) {
	if result.Slug != "" {
		fmt.Fprintf(out, "Video:   %s (%s)\n", result.VideoName, result.Slug)
	}
	fmt.Fprintf(out, "Mode:    %s\n", result.Mode)
	fmt.Fprintf(out, "Outcome: %s\n", result.Outcome)
	if result.Outcome != workflow.OutcomeFailed {
		fmt.Fprintf(out, "Stage:   %s\n", result.Recorded)
	}
	if result.Message != "" && result.Outcome == workflow.OutcomePaused {
		fmt.Fprintln(out, result.Message)
	}
	for _, f := range result.Failures {
		fmt.Fprintf(out, "  failed %s: %v\n", f.Unit, f.Err)
	}
}

func renderChecks(out io.Writer, results []preflight.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if !r.Passed {
			status = "FAIL"
		}
		rows = append(rows, []string{r.Name, status, r.Detail})
	}
	fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))
}
