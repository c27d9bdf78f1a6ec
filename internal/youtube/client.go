package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"postcast/internal/logging"
	"postcast/internal/retry"
	"postcast/internal/services"
	"postcast/internal/textutil"
)

const (
	defaultHTTPTimeout = 60 * time.Second

	// maxThumbnailBytes is the platform cap for custom thumbnails.
	maxThumbnailBytes = 2 << 20

	// maxTitleRunes is the platform cap for video titles.
	maxTitleRunes = 100

	searchPageSize = 50
)

// Config carries the channel and caption settings for the platform client.
type Config struct {
	ChannelID       string
	CaptionLanguage string
	// CaptionName overrides the display name of uploaded caption tracks.
	CaptionName    string
	TimeoutSeconds int
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// Video is the slice of platform video metadata this system works with.
type Video struct {
	ID          string
	Title       string
	Description string
	ChannelID   string
	PublishedAt time.Time
	// Live reports an in-progress or scheduled broadcast. Transcripts and
	// publishing only make sense after the stream ends.
	Live bool
}

// Client talks to the YouTube Data API for one channel.
type Client struct {
	cfg    Config
	svc    *yt.Service
	policy retry.Policy
	logger *slog.Logger
}

// New builds the platform client on top of an authenticated HTTP client,
// normally the one produced by Authenticator.Client.
func New(ctx context.Context, cfg Config, httpClient *http.Client, policy retry.Policy, logger *slog.Logger) (*Client, error) {
	cfg.ChannelID = strings.TrimSpace(cfg.ChannelID)
	cfg.CaptionLanguage = strings.ToLower(strings.TrimSpace(cfg.CaptionLanguage))
	if cfg.CaptionLanguage == "" {
		cfg.CaptionLanguage = "es"
	}
	if httpClient == nil {
		return nil, errors.New("youtube: http client required")
	}
	if httpClient.Timeout == 0 {
		clientCopy := *httpClient
		clientCopy.Timeout = timeoutDuration(cfg.TimeoutSeconds)
		httpClient = &clientCopy
	}

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithEndpoint(base))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	return &Client{
		cfg:    cfg,
		svc:    svc,
		policy: policy,
		logger: logging.NewComponentLogger(logger, "youtube"),
	}, nil
}

func timeoutDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultHTTPTimeout
	}
	return time.Duration(seconds) * time.Second
}

// RecentUploads lists the channel's published videos, newest first, leaving
// out streams that are still live or scheduled. A zero since lists without a
// publication floor; limit caps the result count and defaults to one page.
// Each page costs 100 quota units.
func (c *Client) RecentUploads(ctx context.Context, since time.Time, limit int64) ([]Video, error) {
	if c.cfg.ChannelID == "" {
		return nil, services.Wrap(services.ErrConfiguration, "youtube", "search uploads",
			"channel id not configured", nil)
	}
	if limit <= 0 {
		limit = searchPageSize
	}

	var (
		videos    []Video
		pageToken string
	)
	for int64(len(videos)) < limit {
		pageSize := limit - int64(len(videos))
		if pageSize > searchPageSize {
			pageSize = searchPageSize
		}

		var resp *yt.SearchListResponse
		err := c.policy.Do(ctx, "youtube search", func() error {
			call := c.svc.Search.List([]string{"snippet"}).
				ChannelId(c.cfg.ChannelID).
				Type("video").
				Order("date").
				MaxResults(pageSize).
				Context(ctx)
			if !since.IsZero() {
				call = call.PublishedAfter(since.UTC().Format(time.RFC3339))
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var callErr error
			resp, callErr = call.Do()
			return classify("search uploads", callErr)
		})
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
				continue
			}
			// Streams still running or scheduled have no transcript yet.
			if item.Snippet.LiveBroadcastContent == "live" || item.Snippet.LiveBroadcastContent == "upcoming" {
				continue
			}
			videos = append(videos, Video{
				ID:          item.Id.VideoId,
				Title:       item.Snippet.Title,
				Description: item.Snippet.Description,
				ChannelID:   item.Snippet.ChannelId,
				PublishedAt: parseTimestamp(item.Snippet.PublishedAt),
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" || len(resp.Items) == 0 {
			break
		}
	}
	if int64(len(videos)) > limit {
		videos = videos[:limit]
	}

	c.logger.Debug("uploads listed", logging.Int("count", len(videos)))
	return videos, nil
}

// LatestUpload returns the channel's newest video.
func (c *Client) LatestUpload(ctx context.Context) (*Video, error) {
	videos, err := c.RecentUploads(ctx, time.Time{}, 1)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "youtube", "latest upload",
			"channel has no uploads", nil)
	}
	return &videos[0], nil
}

// Video fetches one video's snippet and live-streaming details. Costs 1
// quota unit.
func (c *Client) Video(ctx context.Context, videoID string) (*Video, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, errors.New("video ID must not be empty")
	}

	item, err := c.fetchVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	video := &Video{
		ID:          videoID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		ChannelID:   item.Snippet.ChannelId,
		PublishedAt: parseTimestamp(item.Snippet.PublishedAt),
		Live:        item.Snippet.LiveBroadcastContent == "live" || item.Snippet.LiveBroadcastContent == "upcoming",
	}
	if details := item.LiveStreamingDetails; details != nil && details.ActualStartTime != "" && details.ActualEndTime == "" {
		video.Live = true
	}
	return video, nil
}

func (c *Client) fetchVideo(ctx context.Context, videoID string) (*yt.Video, error) {
	var resp *yt.VideoListResponse
	err := c.policy.Do(ctx, "youtube videos.list", func() error {
		var callErr error
		resp, callErr = c.svc.Videos.List([]string{"snippet", "liveStreamingDetails"}).
			Id(videoID).Context(ctx).Do()
		return classify("fetch video", callErr)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return nil, services.Wrap(services.ErrNotFound, "youtube", "fetch video",
			fmt.Sprintf("video %s not found", videoID), nil)
	}
	return resp.Items[0], nil
}

// UpdateSnippet publishes a new title and description for the video. The
// current snippet is fetched first so category, tags and language settings
// survive the update. Costs about 51 quota units.
func (c *Client) UpdateSnippet(ctx context.Context, videoID, title, description string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return errors.New("video ID must not be empty")
	}
	if runes := len([]rune(title)); runes > maxTitleRunes {
		c.logger.Warn("title over the platform limit, truncating",
			logging.String(logging.FieldVideoID, videoID),
			logging.Int("title_length", runes))
		title = textutil.Truncate(title, maxTitleRunes)
	}

	item, err := c.fetchVideo(ctx, videoID)
	if err != nil {
		return err
	}
	item.Snippet.Title = title
	item.Snippet.Description = description
	update := &yt.Video{Id: videoID, Snippet: item.Snippet}

	err = c.policy.Do(ctx, "youtube videos.update", func() error {
		_, callErr := c.svc.Videos.Update([]string{"snippet"}, update).Context(ctx).Do()
		return classify("update snippet", callErr)
	})
	if err != nil {
		return err
	}

	c.logger.Info("video metadata updated",
		logging.String(logging.FieldVideoID, videoID),
		logging.Int("title_length", len([]rune(title))))
	return nil
}

// SetThumbnail uploads the JPEG as the video's custom thumbnail. Oversized
// images fail before any quota is spent. Costs 50 quota units.
func (c *Client) SetThumbnail(ctx context.Context, videoID string, image []byte) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return errors.New("video ID must not be empty")
	}
	if len(image) == 0 {
		return services.Wrap(services.ErrValidation, "youtube", "set thumbnail", "image is empty", nil)
	}
	if len(image) > maxThumbnailBytes {
		return services.Wrap(services.ErrValidation, "youtube", "set thumbnail",
			fmt.Sprintf("image is %d bytes, the platform cap is %d", len(image), maxThumbnailBytes), nil)
	}

	err := c.policy.Do(ctx, "youtube thumbnails.set", func() error {
		_, callErr := c.svc.Thumbnails.Set(videoID).
			Media(bytes.NewReader(image), googleapi.ContentType("image/jpeg")).
			Context(ctx).Do()
		return classify("set thumbnail", callErr)
	})
	if err != nil {
		return err
	}

	c.logger.Info("thumbnail uploaded",
		logging.String(logging.FieldVideoID, videoID),
		logging.Int("size_bytes", len(image)))
	return nil
}

// UpsertCaption replaces the video's caption track in the configured
// language: any existing track in that language is deleted first, then the
// SRT is inserted published rather than as a draft. The insert costs 400
// quota units, the most expensive call in the pipeline.
func (c *Client) UpsertCaption(ctx context.Context, videoID, srt string) error {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return errors.New("video ID must not be empty")
	}
	if strings.TrimSpace(srt) == "" {
		return services.Wrap(services.ErrValidation, "youtube", "insert caption", "caption payload is empty", nil)
	}

	language := c.cfg.CaptionLanguage
	name := c.cfg.CaptionName
	if name == "" {
		name = fmt.Sprintf("%s (Generado automáticamente)", strings.ToUpper(language))
	}

	var existing *yt.CaptionListResponse
	err := c.policy.Do(ctx, "youtube captions.list", func() error {
		var callErr error
		existing, callErr = c.svc.Captions.List([]string{"snippet"}, videoID).Context(ctx).Do()
		return classify("list captions", callErr)
	})
	if err != nil {
		return err
	}

	for _, item := range existing.Items {
		if item.Snippet == nil || !strings.EqualFold(item.Snippet.Language, language) {
			continue
		}
		captionID := item.Id
		err := c.policy.Do(ctx, "youtube captions.delete", func() error {
			return classify("delete caption", c.svc.Captions.Delete(captionID).Context(ctx).Do())
		})
		if err != nil {
			return err
		}
		c.logger.Debug("existing caption track removed",
			logging.String(logging.FieldVideoID, videoID),
			logging.String("language", language))
	}

	caption := &yt.Caption{
		Snippet: &yt.CaptionSnippet{
			VideoId:  videoID,
			Language: language,
			Name:     name,
			// IsDraft is zero-valued; force it onto the wire so the track is
			// published immediately.
			IsDraft:         false,
			ForceSendFields: []string{"IsDraft"},
		},
	}
	err = c.policy.Do(ctx, "youtube captions.insert", func() error {
		_, callErr := c.svc.Captions.Insert([]string{"snippet"}, caption).
			Media(strings.NewReader(srt), googleapi.ContentType("application/octet-stream")).
			Context(ctx).Do()
		return classify("insert caption", callErr)
	})
	if err != nil {
		return err
	}

	c.logger.Info("caption track published",
		logging.String(logging.FieldVideoID, videoID),
		logging.String("language", language),
		logging.String("track_name", name))
	return nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// classify maps SDK errors onto the shared taxonomy so the retry policy can
// tell request bugs from infrastructure hiccups. Daily quota exhaustion
// (403 quotaExceeded) is permanent; per-minute rate limits retry.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		marker := services.ErrExternalAPI
		switch {
		case apiErr.Code == http.StatusNotFound:
			marker = services.ErrNotFound
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError:
			marker = services.ErrTransient
		case apiErr.Code == http.StatusForbidden && hasReason(apiErr, "rateLimitExceeded", "userRateLimitExceeded"):
			marker = services.ErrTransient
		}
		return services.Wrap(marker, "youtube", operation, fmt.Sprintf("http %d", apiErr.Code), err)
	}
	return services.Wrap(services.ErrTransient, "youtube", operation, "", err)
}

func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, item := range apiErr.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	return false
}
