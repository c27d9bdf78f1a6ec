package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postcast/internal/config"
	"postcast/internal/state"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var process bool

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Clear failed records so their videos run again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !process {
				return ctx.withStore(func(cfg *config.Config, store *state.Store) error {
					cleared, err := store.RetryFailed()
					if err != nil {
						return err
					}
					printCleared(cmd.OutOrStdout(), cleared)
					return nil
				})
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withRuntime(runCtx, func(rt *runtime) error {
				cleared, err := rt.store.RetryFailed()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printCleared(out, cleared)

				// Per-video failures are recorded and notified by the
				// pipeline; only cancellation stops the batch.
				for _, videoID := range cleared {
					res, err := rt.pipe.Process(runCtx, videoID, false)
					printProcessResult(out, res)
					if errors.Is(err, context.Canceled) {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&process, "process", false, "Immediately reprocess the cleared videos")
	return cmd
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove processing records older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *state.Store) error {
				removed, err := store.CleanOldEntries(days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records older than %d days\n", removed, days)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "Remove records older than this many days")
	return cmd
}
