package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"postcast/internal/logging"
	"postcast/internal/notifications"
	"postcast/internal/retry"
	"postcast/internal/services"
	"postcast/internal/state"
	"postcast/internal/transcript"
	"postcast/internal/youtube"
)

// State names a position in the per-video processing state machine. A run
// only moves forward; the first failing step ends it in StateFailed.
type State string

const (
	StateNotStarted      State = "not_started"
	StateTranscriptReady State = "transcript_ready"
	StateChaptersReady   State = "chapters_ready"
	StateTitleReady      State = "title_ready"
	StateThumbnailReady  State = "thumbnail_ready"
	StatePublished       State = "published"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
)

// Platform is the slice of the video platform the pipeline drives: metadata
// reads plus the three publish writes.
type Platform interface {
	Video(ctx context.Context, videoID string) (*youtube.Video, error)
	RecentUploads(ctx context.Context, since time.Time, limit int64) ([]youtube.Video, error)
	UpdateSnippet(ctx context.Context, videoID, title, description string) error
	SetThumbnail(ctx context.Context, videoID string, image []byte) error
	UpsertCaption(ctx context.Context, videoID, srt string) error
}

// Transcripts fetches episode caption tracks.
type Transcripts interface {
	Fetch(ctx context.Context, videoID string) (*transcript.Transcript, error)
}

// MetadataGenerator produces chapters, titles, and descriptions from a
// transcript.
type MetadataGenerator interface {
	Chapters(ctx context.Context, tr *transcript.Transcript) (string, error)
	Title(ctx context.Context, tr *transcript.Transcript, currentTitle string) (string, error)
	Description(ctx context.Context, tr *transcript.Transcript, chapters, title string) (string, error)
	Topic(ctx context.Context, tr *transcript.Transcript, fallbackTitle string) string
	StaticDescription(chapters, title string) string
}

// ThumbnailRenderer turns a title and topic into finished thumbnail bytes.
type ThumbnailRenderer interface {
	Render(ctx context.Context, title, theme string, reference []byte) ([]byte, error)
}

// Store is the slice of the state store the pipeline reads and writes.
type Store interface {
	IsProcessed(videoID string) bool
	MarkProcessed(videoID string, steps state.Steps, title, errText string) error
	LastCheck() (time.Time, bool)
	UpdateLastCheck() error
}

// Config carries the pipeline's artifact locations and scan behavior.
type Config struct {
	// TranscriptsDir receives {id}.txt and {id}.srt transcript artifacts.
	TranscriptsDir string
	// ChaptersDir receives {id}.txt chapter listings.
	ChaptersDir string
	// ThumbnailsDir receives {id}.jpg rendered thumbnails.
	ThumbnailsDir string
	// ReferenceThumbnail optionally points at an image whose style guides
	// thumbnail generation. A missing file downgrades to a warning.
	ReferenceThumbnail string
	// ScanWindow bounds how far back Scan looks when the store has no
	// last-check mark yet. Defaults to 30 days.
	ScanWindow time.Duration
}

func (c Config) validate() error {
	dirs := []struct {
		name  string
		value string
	}{
		{"transcripts", c.TranscriptsDir},
		{"chapters", c.ChaptersDir},
		{"thumbnails", c.ThumbnailsDir},
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir.value) == "" {
			return services.Wrap(services.ErrConfiguration, "pipeline", "new",
				dir.name+" directory is required", nil)
		}
	}
	return nil
}

// Deps bundles the collaborators a Pipeline drives.
type Deps struct {
	Store       Store
	Platform    Platform
	Transcripts Transcripts
	Metadata    MetadataGenerator
	Thumbnails  ThumbnailRenderer
	Notifier    notifications.Service

	// Waits paces transcript fetches while the caption track is still being
	// prepared upstream.
	Waits  retry.WaitPolicy
	Logger *slog.Logger
}

func (d Deps) validate() error {
	required := []struct {
		name    string
		present bool
	}{
		{"store", d.Store != nil},
		{"platform", d.Platform != nil},
		{"transcripts", d.Transcripts != nil},
		{"metadata", d.Metadata != nil},
		{"thumbnails", d.Thumbnails != nil},
		{"notifier", d.Notifier != nil},
	}
	for _, dep := range required {
		if !dep.present {
			return services.Wrap(services.ErrConfiguration, "pipeline", "new",
				dep.name+" dependency is required", nil)
		}
	}
	return nil
}

// Result reports the outcome of one video's run.
type Result struct {
	VideoID      string
	Title        string
	State        State
	Steps        state.Steps
	ChapterCount int
	// Skipped marks videos left untouched because a completed record exists.
	Skipped bool
	// Err holds the first failure, including a failed record persist.
	Err error
}

const defaultScanWindow = 30 * 24 * time.Hour

// Pipeline owns the per-episode post-production flow.
type Pipeline struct {
	cfg         Config
	store       Store
	platform    Platform
	transcripts Transcripts
	metadata    MetadataGenerator
	thumbnails  ThumbnailRenderer
	notifier    notifications.Service
	waits       retry.WaitPolicy
	logger      *slog.Logger
}

// New wires a Pipeline from its collaborators.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = defaultScanWindow
	}
	return &Pipeline{
		cfg:         cfg,
		store:       deps.Store,
		platform:    deps.Platform,
		transcripts: deps.Transcripts,
		metadata:    deps.Metadata,
		thumbnails:  deps.Thumbnails,
		notifier:    deps.Notifier,
		waits:       deps.Waits,
		logger:      logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}
