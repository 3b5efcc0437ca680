package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/notifications"
	"clipper/internal/preflight"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through every configured channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			notifier := notifications.New(cfg, logger)
			if _, ok := notifier.(notifications.Noop); ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No notification channel configured")
				return nil
			}
			result := preflight.CheckNotifier(cmd.Context(), notifier, "clipper")
			if !result.Passed {
				return fmt.Errorf("test notification failed: %s", result.Detail)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
