package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"postcast/internal/logging"
	"postcast/internal/state"
	"postcast/internal/textutil"
	"postcast/internal/transcript"
	"postcast/internal/youtube"
)

const (
	stepTranscript = "transcript"
	stepChapters   = "chapters"
	stepTitle      = "title"
	stepThumbnail  = "thumbnail"
	stepPublish    = "publish"
	stepCaptions   = "captions"
)

// runState carries one video's intermediate products between steps.
type runState struct {
	video       *youtube.Video
	transcript  *transcript.Transcript
	chapters    string
	title       string
	description string
	image       []byte
	result      *Result
}

type step struct {
	name string
	run  func(ctx context.Context, logger *slog.Logger, rs *runState) error
}

func (p *Pipeline) steps() []step {
	return []step{
		{stepTranscript, p.stepTranscript},
		{stepChapters, p.stepChapters},
		{stepTitle, p.stepTitle},
		{stepThumbnail, p.stepThumbnail},
		{stepPublish, p.stepPublish},
		{stepCaptions, p.stepCaptions},
	}
}

func (p *Pipeline) stepTranscript(ctx context.Context, logger *slog.Logger, rs *runState) error {
	tr, err := p.fetchTranscript(ctx, rs.video.ID)
	if err != nil {
		return err
	}
	if _, err := p.saveArtifact(p.cfg.TranscriptsDir, rs.video.ID+".txt", []byte(tr.PlainText()+"\n")); err != nil {
		return err
	}
	if _, err := p.saveArtifact(p.cfg.TranscriptsDir, rs.video.ID+".srt", []byte(tr.ToSRT())); err != nil {
		return err
	}

	logger.Debug("transcript fetched",
		logging.Int("segments", len(tr.Segments)),
		logging.Int("words", tr.WordCount()))

	rs.transcript = tr
	rs.result.Steps.Set(state.StepTranscript)
	rs.result.State = StateTranscriptReady
	return nil
}

func (p *Pipeline) stepChapters(ctx context.Context, logger *slog.Logger, rs *runState) error {
	chapters, err := p.metadata.Chapters(ctx, rs.transcript)
	if err != nil {
		return err
	}
	if _, err := p.saveArtifact(p.cfg.ChaptersDir, rs.video.ID+".txt", []byte(chapters+"\n")); err != nil {
		return err
	}
	rs.chapters = chapters
	rs.result.ChapterCount = countChapters(chapters)
	rs.result.State = StateChaptersReady
	logger.Debug("chapters generated", logging.Int("chapters", rs.result.ChapterCount))
	return nil
}

func (p *Pipeline) stepTitle(ctx context.Context, logger *slog.Logger, rs *runState) error {
	title, err := p.metadata.Title(ctx, rs.transcript, rs.video.Title)
	if err != nil {
		return err
	}
	description, err := p.metadata.Description(ctx, rs.transcript, rs.chapters, title)
	if err != nil {
		return err
	}
	rs.title = title
	rs.description = description
	rs.result.Title = title
	rs.result.State = StateTitleReady
	logger.Debug("title and description generated", logging.String("title", title))
	return nil
}

func (p *Pipeline) stepThumbnail(ctx context.Context, logger *slog.Logger, rs *runState) error {
	topic := p.metadata.Topic(ctx, rs.transcript, rs.title)
	image, err := p.thumbnails.Render(ctx, rs.title, topic, p.referenceImage(logger))
	if err != nil {
		return err
	}
	path, err := p.saveArtifact(p.cfg.ThumbnailsDir, rs.video.ID+".jpg", image)
	if err != nil {
		return err
	}
	rs.image = image
	rs.result.State = StateThumbnailReady
	logger.Debug("thumbnail rendered",
		logging.Int("bytes", len(image)),
		logging.String("path", path))
	return nil
}

// stepPublish pushes the generated snippet and thumbnail to the platform.
// Each write earns its step flag separately so a failure between the two
// leaves an accurate record.
func (p *Pipeline) stepPublish(ctx context.Context, logger *slog.Logger, rs *runState) error {
	if err := p.platform.UpdateSnippet(ctx, rs.video.ID, rs.title, rs.description); err != nil {
		return err
	}
	rs.result.Steps.Set(state.StepMetadata)
	if err := p.platform.SetThumbnail(ctx, rs.video.ID, rs.image); err != nil {
		return err
	}
	rs.result.Steps.Set(state.StepThumbnail)
	rs.result.State = StatePublished
	logger.Debug("snippet and thumbnail published")
	return nil
}

func (p *Pipeline) stepCaptions(ctx context.Context, logger *slog.Logger, rs *runState) error {
	if err := p.platform.UpsertCaption(ctx, rs.video.ID, rs.transcript.ToSRT()); err != nil {
		return err
	}
	rs.result.Steps.Set(state.StepCaptions)
	logger.Debug("caption track uploaded")
	return nil
}

// fetchTranscript fetches through the availability-lag wait policy: fresh
// uploads often have no caption track for a few minutes.
func (p *Pipeline) fetchTranscript(ctx context.Context, videoID string) (*transcript.Transcript, error) {
	var tr *transcript.Transcript
	err := p.waits.Do(ctx, "fetch transcript", func() error {
		fetched, err := p.transcripts.Fetch(ctx, videoID)
		if err != nil {
			return err
		}
		tr = fetched
		return nil
	})
	return tr, err
}

// referenceImage loads the configured branding reference, or nil when none is
// configured or the file has gone missing.
func (p *Pipeline) referenceImage(logger *slog.Logger) []byte {
	if p.cfg.ReferenceThumbnail == "" {
		return nil
	}
	data, err := os.ReadFile(p.cfg.ReferenceThumbnail)
	if err != nil {
		logging.WarnWithContext(logger, "reference thumbnail unavailable", "reference_thumbnail_missing",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check episode.reference_thumbnail in the config"),
			logging.String(logging.FieldImpact, "thumbnail rendered without channel branding reference"))
		return nil
	}
	return data
}

func (p *Pipeline) saveArtifact(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := filepath.Join(dir, textutil.SanitizeFileName(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save artifact: %w", err)
	}
	return path, nil
}

func countChapters(chapters string) int {
	count := 0
	for _, line := range strings.Split(chapters, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
