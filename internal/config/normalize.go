package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeYouTube(); err != nil {
		return err
	}
	c.normalizeGemini()
	c.normalizeTranscript()
	c.normalizeNotifications()
	if err := c.normalizeEpisode(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateFile, err = expandPath(c.Paths.StateFile); err != nil {
		return fmt.Errorf("paths.state_file: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeYouTube() error {
	c.YouTube.ChannelID = strings.TrimSpace(c.YouTube.ChannelID)
	if c.YouTube.ChannelID == "" {
		if value, ok := os.LookupEnv("YOUTUBE_CHANNEL_ID"); ok {
			c.YouTube.ChannelID = strings.TrimSpace(value)
		}
	}
	var err error
	if c.YouTube.CredentialsFile, err = expandPath(c.YouTube.CredentialsFile); err != nil {
		return fmt.Errorf("youtube.credentials_file: %w", err)
	}
	if c.YouTube.TokenFile, err = expandPath(c.YouTube.TokenFile); err != nil {
		return fmt.Errorf("youtube.token_file: %w", err)
	}
	c.YouTube.CaptionLanguage = strings.ToLower(strings.TrimSpace(c.YouTube.CaptionLanguage))
	if c.YouTube.CaptionLanguage == "" {
		c.YouTube.CaptionLanguage = defaultCaptionLanguage
	}
	c.YouTube.CaptionName = strings.TrimSpace(c.YouTube.CaptionName)
	return nil
}

func (c *Config) normalizeGemini() {
	if c.Gemini.APIKey == "" {
		if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.Gemini.APIKey = value
		}
	}
	c.Gemini.BaseURL = strings.TrimSpace(c.Gemini.BaseURL)
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = defaultGeminiBaseURL
	}
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultGeminiModel
	}
	c.Gemini.ImageModel = strings.TrimSpace(c.Gemini.ImageModel)
	if c.Gemini.ImageModel == "" {
		c.Gemini.ImageModel = defaultGeminiImageModel
	}
}

func (c *Config) normalizeTranscript() {
	c.Transcript.Language = strings.ToLower(strings.TrimSpace(c.Transcript.Language))
	if c.Transcript.Language == "" {
		c.Transcript.Language = defaultTranscriptLanguage
	}
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.TelegramBotToken == "" {
		if value, ok := os.LookupEnv("TELEGRAM_BOT_TOKEN"); ok {
			c.Notifications.TelegramBotToken = value
		}
	}
	if c.Notifications.TelegramChatID == "" {
		if value, ok := os.LookupEnv("TELEGRAM_CHAT_ID"); ok {
			c.Notifications.TelegramChatID = value
		}
	}
	c.Notifications.TelegramBotToken = strings.TrimSpace(c.Notifications.TelegramBotToken)
	c.Notifications.TelegramChatID = strings.TrimSpace(c.Notifications.TelegramChatID)
}

func (c *Config) normalizeEpisode() error {
	c.Episode.ShowName = strings.TrimSpace(c.Episode.ShowName)
	c.Episode.DescriptionFooter = strings.TrimSpace(c.Episode.DescriptionFooter)
	hashtags := make([]string, 0, len(c.Episode.Hashtags))
	for _, tag := range c.Episode.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		hashtags = append(hashtags, tag)
	}
	c.Episode.Hashtags = hashtags

	c.Episode.ReferenceThumbnail = strings.TrimSpace(c.Episode.ReferenceThumbnail)
	if c.Episode.ReferenceThumbnail != "" {
		expanded, err := expandPath(c.Episode.ReferenceThumbnail)
		if err != nil {
			return fmt.Errorf("episode.reference_thumbnail: %w", err)
		}
		c.Episode.ReferenceThumbnail = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
