package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postcast/internal/logging"
	"postcast/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the postcast log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.LogFilePath(cfg)
			if path == "" {
				return errors.New("paths.log_dir is not configured")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return logs.Tail(runCtx, path, logs.TailOptions{
				Lines:  lines,
				Follow: follow,
			}, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&lines, "lines", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVar(&follow, "follow", false, "Keep streaming new lines until interrupted")
	return cmd
}
