package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipper/internal/services/drive"
)

func newDriveCommand(ctx *commandContext) *cobra.Command {
	driveCmd := &cobra.Command{
		Use:   "drive",
		Short: "Google Drive utilities",
	}
	driveCmd.AddCommand(newDriveAuthCommand(ctx))
	driveCmd.AddCommand(newDriveListCommand(ctx))
	return driveCmd
}

func newDriveAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize clipper to read and upload Drive files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			oauthCfg, err := drive.LoadOAuthConfig(cfg.Drive.ClientSecretPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tok, err := drive.AuthorizeLoopback(cmd.Context(), oauthCfg, func(url string) {
				fmt.Fprintln(out, "Open this URL in a browser and grant access:")
				fmt.Fprintln(out, url)
			})
			if err != nil {
				return err
			}
			if err := drive.SaveToken(cfg.Drive.TokenPath, tok); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved Drive token to %s\n", cfg.Drive.TokenPath)
			return nil
		},
	}
}

func newDriveListCommand(ctx *commandContext) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List recently modified Drive files",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.driveClient(cmd.Context())
			if err != nil {
				return err
			}
			if client == nil {
				return fmt.Errorf("no Drive token; run `clipper drive auth` first")
			}
			files, err := client.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(files))
			for _, f := range files {
				rows = append(rows, []string{f.ID, f.Name, f.MimeType})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Type"}, rows))
			return nil
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 10, "Number of files to list")
	return cmd
}
