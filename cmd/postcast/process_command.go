package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"postcast/internal/pipeline"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var latest bool
	var force bool
	var only string

	cmd := &cobra.Command{
		Use:   "process [VIDEO_ID]",
		Short: "Run the post-production pipeline for one video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var videoID string
			if len(args) > 0 {
				videoID = strings.TrimSpace(args[0])
			}
			if videoID == "" && !latest {
				return errors.New("provide a VIDEO_ID or --latest")
			}
			if videoID != "" && latest {
				return errors.New("VIDEO_ID and --latest are mutually exclusive")
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Step failures inside a run are already reported by the
			// pipeline; only failures outside a run get the generic alert.
			alreadyNotified := false
			err := ctx.withRuntime(runCtx, func(rt *runtime) error {
				out := cmd.OutOrStdout()

				if latest {
					video, err := rt.platform.LatestUpload(runCtx)
					if err != nil {
						return err
					}
					videoID = video.ID
					fmt.Fprintf(out, "Latest upload: %s (%s)\n", video.Title, video.ID)
				}

				if only != "" {
					output, err := rt.pipe.RunStep(runCtx, videoID, only)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, output)
					return nil
				}

				res, err := rt.pipe.Process(runCtx, videoID, force)
				printProcessResult(out, res)
				alreadyNotified = res.State == pipeline.StateFailed
				return err
			})
			if err != nil && !alreadyNotified {
				scope := "video_id: último"
				if videoID != "" {
					scope = "video_id: " + videoID
				}
				ctx.notifyRunError(runCtx, err, scope)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "Process the channel's newest upload")
	cmd.Flags().BoolVar(&force, "force", false, "Reprocess even if the video already completed")
	cmd.Flags().StringVar(&only, "only", "", "Run a single step: transcript, chapters, title, thumbnail, or publish")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Process channel uploads published since the last check",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := ctx.withRuntime(runCtx, func(rt *runtime) error {
				results, err := rt.pipe.Scan(runCtx, limit)
				printScanResults(cmd.OutOrStdout(), results)
				return err
			})
			if err != nil {
				ctx.notifyRunError(runCtx, err, "scan")
			}
			return err
		},
	}

	cmd.Flags().Int64Var(&limit, "limit", 10, "Maximum number of uploads to examine")
	return cmd
}
