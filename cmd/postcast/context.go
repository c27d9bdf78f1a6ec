package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"postcast/internal/config"
	"postcast/internal/gemini"
	"postcast/internal/logging"
	"postcast/internal/metadata"
	"postcast/internal/notifications"
	"postcast/internal/pipeline"
	"postcast/internal/ratelimit"
	"postcast/internal/retry"
	"postcast/internal/state"
	"postcast/internal/thumbnail"
	"postcast/internal/transcript"
	"postcast/internal/youtube"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
		c.configExists = exists
	})
	return c.config, c.configErr
}

// ensureLogger builds the invocation logger once. Every line carries the same
// correlation id so one cron run can be isolated in the shared log file.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger = logger.With(logging.String(logging.FieldCorrelationID, uuid.NewString()))
	})
	return c.logger, c.loggerErr
}

// withStore opens the state store for the duration of fn. The file lock inside
// makes a second postcast process fail fast instead of clobbering state.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *state.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := state.Open(cfg.Paths.StateFile, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// runtime is the fully wired processing stack behind process, scan, and retry.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *state.Store
	platform *youtube.Client
	pipe     *pipeline.Pipeline
	notifier notifications.Service
}

// withRuntime wires the store, platform client, AI client, and pipeline, then
// hands the bundle to fn. The store closes when fn returns.
func (c *commandContext) withRuntime(ctx context.Context, fn func(*runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}

	store, err := state.Open(cfg.Paths.StateFile, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	platform, err := c.platformClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	notifier := notifications.New(cfg.Notifications, logger)
	ai := aiClient(cfg, logger)
	pipe, err := pipeline.New(pipeline.Config{
		TranscriptsDir:     cfg.TranscriptsDir(),
		ChaptersDir:        cfg.ChaptersDir(),
		ThumbnailsDir:      cfg.ThumbnailsDir(),
		ReferenceThumbnail: cfg.Episode.ReferenceThumbnail,
	}, pipeline.Deps{
		Store:       store,
		Platform:    platform,
		Transcripts: transcript.New(cfg.TranscriptLanguages(), logger),
		Metadata:    metadataGenerator(cfg, ai, logger),
		Thumbnails:  thumbnail.New(thumbnail.Config{ShowName: cfg.Episode.ShowName}, ai, logger),
		Notifier:    notifier,
		Waits: retry.WaitPolicy{
			Attempts: cfg.Transcript.Attempts,
			WaitStep: cfg.TranscriptWaitStep(),
			Logger:   logger,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	return fn(&runtime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		platform: platform,
		pipe:     pipe,
		notifier: notifier,
	})
}

// platformClient builds an authenticated YouTube client, failing with a hint
// to run `postcast auth` when no stored authorization exists.
func (c *commandContext) platformClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*youtube.Client, error) {
	auth := youtube.NewAuthenticator(cfg.YouTube.CredentialsFile, cfg.YouTube.TokenFile, logger)
	httpClient, err := auth.Client(ctx)
	if err != nil {
		return nil, err
	}
	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
		Logger:      logger,
	}
	return youtube.New(ctx, youtube.Config{
		ChannelID:       cfg.YouTube.ChannelID,
		CaptionLanguage: cfg.YouTube.CaptionLanguage,
		CaptionName:     cfg.YouTube.CaptionName,
		TimeoutSeconds:  cfg.YouTube.RequestTimeout,
	}, httpClient, policy, logger)
}

// aiClient builds the shared Gemini client. Text and image limiters live on
// the one client so every caller draws from the same rate budget.
func aiClient(cfg *config.Config, logger *slog.Logger) *gemini.Client {
	return gemini.NewClient(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		BaseURL:        cfg.Gemini.BaseURL,
		Model:          cfg.Gemini.Model,
		ImageModel:     cfg.Gemini.ImageModel,
		TimeoutSeconds: cfg.Gemini.TimeoutSeconds,
	},
		gemini.WithTextLimiter(ratelimit.New("gemini-text", cfg.Gemini.TextRateCalls,
			time.Duration(cfg.Gemini.TextRatePeriod)*time.Second, logger)),
		gemini.WithImageLimiter(ratelimit.New("gemini-image", cfg.Gemini.ImageRateCalls,
			time.Duration(cfg.Gemini.ImageRatePeriod)*time.Second, logger)),
		gemini.WithRetryMaxAttempts(cfg.Retry.MaxAttempts),
		gemini.WithRetryBackoff(cfg.RetryBaseDelay(), cfg.RetryMaxDelay()),
	)
}

func metadataGenerator(cfg *config.Config, ai *gemini.Client, logger *slog.Logger) *metadata.Generator {
	return metadata.New(metadata.Config{
		ShowName:          cfg.Episode.ShowName,
		Hashtags:          cfg.Episode.Hashtags,
		DescriptionFooter: cfg.Episode.DescriptionFooter,
	}, ai, logger)
}

// notifyRunError reports a top-level failure to the operator before the
// non-zero exit. Delivery is best effort; a canceled run is not reported.
func (c *commandContext) notifyRunError(ctx context.Context, err error, scope string) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return
	}
	logger, _ := c.ensureLogger()
	notifications.New(cfg.Notifications, logger).Error(ctx, err, scope)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
