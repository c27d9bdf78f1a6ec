package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postcast/internal/youtube"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize postcast to manage the YouTube channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			auth := youtube.NewAuthenticator(cfg.YouTube.CredentialsFile, cfg.YouTube.TokenFile, logger)
			out := cmd.OutOrStdout()
			if auth.HasToken() {
				fmt.Fprintln(out, "A stored authorization already exists; completing the flow replaces it")
			}

			err = auth.Authorize(runCtx, func(authURL string) {
				fmt.Fprintln(out, "Open this URL in a browser to authorize channel access:")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  "+authURL)
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Waiting for the authorization to complete...")
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Authorization stored in %s\n", cfg.YouTube.TokenFile)
			return nil
		},
	}
}
