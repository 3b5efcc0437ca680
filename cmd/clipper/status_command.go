package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clipper/internal/workdir"
	"clipper/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [slug]",
		Short: "Show pipeline progress for work directories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if len(args) == 1 {
				layout := workdir.New(cfg.Paths.WorkRoot, strings.TrimSpace(args[0]))
				if !layout.Exists() {
					return fmt.Errorf("no work directory %s", layout.Dir)
				}
				status, err := workflow.InspectLayout(cmd.Context(), cfg, layout)
				if err != nil {
					return err
				}
				fmt.Fprint(out, renderStatusDetail(status, colorize))
				return nil
			}

			statuses, err := workflow.Inspect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if len(statuses) == 0 {
				fmt.Fprintf(out, "No work directories under %s\n", cfg.Paths.WorkRoot)
				return nil
			}
			fmt.Fprintln(out, renderStatusTable(statuses, colorize))
			return nil
		},
	}
}
