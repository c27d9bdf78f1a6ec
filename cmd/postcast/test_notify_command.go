package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"postcast/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			svc := notifications.New(cfg.Notifications, logger)
			if !svc.Test(cmd.Context()) {
				return errors.New("test notification was not delivered; check notifications.telegram_bot_token and notifications.telegram_chat_id")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}
}
