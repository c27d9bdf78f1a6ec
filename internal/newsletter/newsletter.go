// Package newsletter sweeps the channel's recent uploads and builds an
// episode digest: one AI-written summary per episode, composed into a
// Markdown newsletter with a JSON sidecar for downstream tooling.
//
// The sweep is sequential with a fixed pause between episodes so the
// generative calls stay well under upstream quotas even when the rate
// limiter would allow more. Episodes whose transcript or summary cannot
// be produced are skipped with a warning; the digest is built from
// whatever survived.
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"postcast/internal/logging"
	"postcast/internal/metadata"
	"postcast/internal/services"
	"postcast/internal/transcript"
	"postcast/internal/youtube"
)

const (
	defaultCount  = 10
	defaultMaxAge = 90 * 24 * time.Hour
	defaultPause  = time.Second

	// uploadScanLimit bounds the search when listing candidates. The
	// digest itself is bounded later by count, after filtering.
	uploadScanLimit = 50
)

// Config carries the digest settings.
type Config struct {
	// ShowName filters uploads to the show's episodes and heads the
	// newsletter. Empty keeps every upload in the window.
	ShowName string
	// OutputDir receives the Markdown digest and its JSON sidecar.
	OutputDir string
	// Pause is the fixed wait between episodes. Zero means one second.
	Pause time.Duration
}

// Platform lists the channel's uploads.
type Platform interface {
	RecentUploads(ctx context.Context, since time.Time, limit int64) ([]youtube.Video, error)
}

// Transcripts fetches an episode transcript.
type Transcripts interface {
	Fetch(ctx context.Context, videoID string) (*transcript.Transcript, error)
}

// Summarizer condenses one episode into a few sentences.
type Summarizer interface {
	EpisodeSummary(ctx context.Context, title string, tr *transcript.Transcript) (string, error)
}

// Generator builds episode digests.
type Generator struct {
	cfg         Config
	platform    Platform
	transcripts Transcripts
	summarizer  Summarizer
	logger      *slog.Logger
	sleep       func(time.Duration)
	now         func() time.Time
}

// Option adjusts generator behavior, primarily for tests.
type Option func(*Generator)

// WithSleeper replaces the pause between episodes.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(g *Generator) {
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// WithClock replaces the wall clock used for the window and file names.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a digest generator.
func New(cfg Config, platform Platform, transcripts Transcripts, summarizer Summarizer, logger *slog.Logger, opts ...Option) (*Generator, error) {
	if platform == nil {
		return nil, services.Wrap(services.ErrConfiguration, "newsletter", "new", "platform client is required", nil)
	}
	if transcripts == nil {
		return nil, services.Wrap(services.ErrConfiguration, "newsletter", "new", "transcript client is required", nil)
	}
	if summarizer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "newsletter", "new", "summarizer is required", nil)
	}
	if cfg.OutputDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "newsletter", "new", "output directory is required", nil)
	}
	if cfg.Pause <= 0 {
		cfg.Pause = defaultPause
	}
	g := &Generator{
		cfg:         cfg,
		platform:    platform,
		transcripts: transcripts,
		summarizer:  summarizer,
		logger:      logging.NewComponentLogger(logger, "newsletter"),
		sleep:       time.Sleep,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate summarizes the newest count episodes published within maxAge
// and writes the digest files. Zero values fall back to ten episodes
// over ninety days. Episodes are presented oldest first.
func (g *Generator) Generate(ctx context.Context, count int, maxAge time.Duration) (*Digest, error) {
	if count <= 0 {
		count = defaultCount
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	since := g.now().Add(-maxAge)
	g.logger.Info("collecting episodes for digest",
		logging.String(logging.FieldEventType, "digest_started"),
		logging.String("since", since.Format(time.RFC3339)),
		logging.Int("count", count))

	uploads, err := g.platform.RecentUploads(ctx, since, uploadScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	candidates := g.selectEpisodes(uploads, count)
	if len(candidates) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "newsletter", "generate", "no uploads matched the configured show name in the requested window", nil)
	}

	digest := &Digest{}
	for i, video := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		episodeCtx := services.WithVideoID(ctx, video.ID)
		episodeLogger := logging.WithContext(episodeCtx, g.logger)

		episode, err := g.summarizeEpisode(episodeCtx, video, i+1)
		if err != nil {
			logging.WarnWithContext(episodeLogger, "episode skipped", "episode_skipped",
				logging.Error(err),
				logging.String(logging.FieldImpact, "episode left out of the digest"))
			digest.Skipped++
		} else {
			episodeLogger.Debug("episode summarized", logging.Int("episode", episode.Number))
			digest.Episodes = append(digest.Episodes, episode)
		}

		if i < len(candidates)-1 {
			g.sleep(g.cfg.Pause)
		}
	}

	if len(digest.Episodes) == 0 {
		msg := fmt.Sprintf("all %d candidate episodes failed, check transcript availability", len(candidates))
		return nil, services.Wrap(services.ErrExternalAPI, "newsletter", "generate", msg, nil)
	}

	digest.Markdown = renderMarkdown(g.cfg.ShowName, digest.Episodes, g.now())
	if err := g.writeDigest(digest); err != nil {
		return nil, err
	}

	g.logger.Info("newsletter generated",
		logging.String(logging.FieldEventType, "digest_completed"),
		logging.Int("episodes", len(digest.Episodes)),
		logging.Int("skipped", digest.Skipped),
		logging.String("path", digest.MarkdownPath))
	return digest, nil
}

// selectEpisodes filters uploads to the show, orders them oldest first
// and keeps the newest count.
func (g *Generator) selectEpisodes(uploads []youtube.Video, count int) []youtube.Video {
	var candidates []youtube.Video
	for _, video := range uploads {
		if g.cfg.ShowName != "" && !strings.Contains(video.Title, g.cfg.ShowName) {
			continue
		}
		candidates = append(candidates, video)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].PublishedAt.Before(candidates[j].PublishedAt)
	})
	if len(candidates) > count {
		candidates = candidates[len(candidates)-count:]
	}
	return candidates
}

func (g *Generator) summarizeEpisode(ctx context.Context, video youtube.Video, position int) (Episode, error) {
	tr, err := g.transcripts.Fetch(ctx, video.ID)
	if err != nil {
		return Episode{}, fmt.Errorf("fetch transcript: %w", err)
	}
	summary, err := g.summarizer.EpisodeSummary(ctx, video.Title, tr)
	if err != nil {
		return Episode{}, err
	}

	number, ok := metadata.EpisodeNumber(video.Title)
	if !ok {
		number = position
	}
	return Episode{
		Number:  number,
		Date:    video.PublishedAt.Format("2006-01-02"),
		Title:   video.Title,
		VideoID: video.ID,
		Summary: summary,
	}, nil
}
