package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"postcast/internal/newsletter"
	"postcast/internal/transcript"
)

// newNewsletterCommand wires the digest generator without the state store, so
// it can run alongside a scheduled scan that holds the state lock.
func newNewsletterCommand(ctx *commandContext) *cobra.Command {
	var count int
	var days int

	cmd := &cobra.Command{
		Use:   "newsletter",
		Short: "Generate an episode digest with AI summaries",
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

			platform, err := ctx.platformClient(runCtx, cfg, logger)
			if err != nil {
				return err
			}
			gen, err := newsletter.New(newsletter.Config{
				ShowName:  cfg.Episode.ShowName,
				OutputDir: cfg.NewslettersDir(),
			}, platform, transcript.New(cfg.TranscriptLanguages(), logger), metadataGenerator(cfg, aiClient(cfg, logger), logger), logger)
			if err != nil {
				return err
			}

			digest, err := gen.Generate(runCtx, count, time.Duration(days)*24*time.Hour)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, digest.Markdown)
			fmt.Fprintf(out, "\nWrote %s and %s", digest.MarkdownPath, digest.JSONPath)
			if digest.Skipped > 0 {
				fmt.Fprintf(out, " (%d episodes skipped)", digest.Skipped)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "Number of recent episodes to include")
	cmd.Flags().IntVar(&days, "days", 90, "Only consider episodes newer than this many days")
	return cmd
}
