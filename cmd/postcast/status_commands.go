package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"postcast/internal/config"
	"postcast/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status VIDEO_ID",
		Short: "Show the processing record for one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *state.Store) error {
				videoID := strings.TrimSpace(args[0])
				rec, ok := store.VideoState(videoID)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "No record for %s\n", videoID)
					return nil
				}
				printRecord(cmd.OutOrStdout(), videoID, rec)
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List processing records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *state.Store) error {
				entries := store.Entries()
				if failedOnly {
					entries = filterFailed(entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No processing records")
					return nil
				}
				table := renderTable(
					[]string{"Video", "Title", "Status", "Steps", "Processed"},
					buildRecordRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed records")
	return cmd
}

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List the channel's recent uploads",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *state.Store) error {
				logger, err := ctx.ensureLogger()
				if err != nil {
					return err
				}
				platform, err := ctx.platformClient(cmd.Context(), cfg, logger)
				if err != nil {
					return err
				}
				uploads, err := platform.RecentUploads(cmd.Context(), time.Time{}, limit)
				if err != nil {
					return err
				}
				if len(uploads) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "The channel has no published uploads")
					return nil
				}
				table := renderTable(
					[]string{"Published", "Video", "Title", "Processed"},
					buildUploadRows(uploads, store.IsProcessed),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 10, "Number of uploads to list")
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *state.Store) error {
				stats := store.Statistics()
				rows := [][]string{
					{"Total", strconv.Itoa(stats.Total)},
					{"Completed", strconv.Itoa(stats.Completed)},
					{"Failed", strconv.Itoa(stats.Failed)},
					{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate)},
				}
				if mark, ok := store.LastCheck(); ok {
					rows = append(rows, []string{"Last check", mark.UTC().Format("2006-01-02 15:04")})
				}
				table := renderTable(
					[]string{"Metric", "Value"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}
