package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateYouTube(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateTranscript(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateFile) == "" {
		return errors.New("paths.state_file must be set")
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateYouTube() error {
	if strings.TrimSpace(c.YouTube.ChannelID) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/postcast/config.toml"
		}
		return fmt.Errorf("youtube.channel_id is required. Set YOUTUBE_CHANNEL_ID env var or edit %s (create with 'postcast config init')", defaultPath)
	}
	if strings.TrimSpace(c.YouTube.CredentialsFile) == "" {
		return errors.New("youtube.credentials_file must be set")
	}
	if strings.TrimSpace(c.YouTube.TokenFile) == "" {
		return errors.New("youtube.token_file must be set")
	}
	if strings.TrimSpace(c.YouTube.CaptionLanguage) == "" {
		return errors.New("youtube.caption_language must be set")
	}
	if c.YouTube.RequestTimeout <= 0 {
		return errors.New("youtube.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/postcast/config.toml"
		}
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'postcast config init')", defaultPath)
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		return errors.New("gemini.model must be set")
	}
	if strings.TrimSpace(c.Gemini.ImageModel) == "" {
		return errors.New("gemini.image_model must be set")
	}
	return ensurePositiveMap(map[string]int{
		"gemini.timeout_seconds":   c.Gemini.TimeoutSeconds,
		"gemini.text_rate_calls":   c.Gemini.TextRateCalls,
		"gemini.text_rate_period":  c.Gemini.TextRatePeriod,
		"gemini.image_rate_calls":  c.Gemini.ImageRateCalls,
		"gemini.image_rate_period": c.Gemini.ImageRatePeriod,
	})
}

func (c *Config) validateTranscript() error {
	if strings.TrimSpace(c.Transcript.Language) == "" {
		return errors.New("transcript.language must be set")
	}
	return ensurePositiveMap(map[string]int{
		"transcript.attempts":          c.Transcript.Attempts,
		"transcript.wait_step_seconds": c.Transcript.WaitStepSeconds,
	})
}

func (c *Config) validateRetry() error {
	if err := ensurePositiveMap(map[string]int{
		"retry.max_attempts":       c.Retry.MaxAttempts,
		"retry.base_delay_seconds": c.Retry.BaseDelaySeconds,
		"retry.max_delay_seconds":  c.Retry.MaxDelaySeconds,
	}); err != nil {
		return err
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return errors.New("retry.max_delay_seconds must be >= retry.base_delay_seconds")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if !c.Notifications.Enabled {
		return nil
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive (seconds)")
	}
	// A blank token just means notifications stay disabled at runtime; the
	// chat id only matters when a token is present.
	if strings.TrimSpace(c.Notifications.TelegramBotToken) != "" && strings.TrimSpace(c.Notifications.TelegramChatID) == "" {
		return errors.New("notifications.telegram_chat_id must be set when notifications.telegram_bot_token is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "auto", "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be one of auto, console, json (got %q)", c.Logging.Format)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
