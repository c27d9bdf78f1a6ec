package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"postcast/internal/logging"
	"postcast/internal/services"
	"postcast/internal/textutil"
)

// RunStep executes one pipeline step in isolation for operator-driven reruns
// and returns a human-readable report. Generation steps only produce and save
// their artifact; nothing is written to the platform and the state store is
// never touched. The publish step is the inverse: it pushes previously saved
// artifacts to the platform, keeping the video's current title.
func (p *Pipeline) RunStep(ctx context.Context, videoID, stepName string) (string, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return "", services.Wrap(services.ErrValidation, "pipeline", "run step", "video id is required", nil)
	}

	stepName = strings.ToLower(strings.TrimSpace(stepName))
	runCtx := services.WithStep(services.WithVideoID(ctx, videoID), stepName)
	logger := logging.WithContext(runCtx, p.logger)

	switch stepName {
	case stepTranscript:
		return p.transcriptOnly(runCtx, videoID)
	case stepChapters:
		return p.chaptersOnly(runCtx, videoID)
	case stepTitle:
		return p.titleOnly(runCtx, videoID)
	case stepThumbnail:
		return p.thumbnailOnly(runCtx, logger, videoID)
	case stepPublish:
		return p.publishArtifacts(runCtx, logger, videoID)
	default:
		return "", services.Wrap(services.ErrValidation, "pipeline", "run step",
			fmt.Sprintf("unknown step %q, valid steps are transcript, chapters, title, thumbnail, publish", stepName), nil)
	}
}

func (p *Pipeline) transcriptOnly(ctx context.Context, videoID string) (string, error) {
	tr, err := p.fetchTranscript(ctx, videoID)
	if err != nil {
		return "", err
	}
	txtPath, err := p.saveArtifact(p.cfg.TranscriptsDir, videoID+".txt", []byte(tr.PlainText()+"\n"))
	if err != nil {
		return "", err
	}
	srtPath, err := p.saveArtifact(p.cfg.TranscriptsDir, videoID+".srt", []byte(tr.ToSRT()))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("transcript: %d segments, %d words\nsaved %s\nsaved %s",
		len(tr.Segments), tr.WordCount(), txtPath, srtPath), nil
}

func (p *Pipeline) chaptersOnly(ctx context.Context, videoID string) (string, error) {
	tr, err := p.fetchTranscript(ctx, videoID)
	if err != nil {
		return "", err
	}
	chapters, err := p.metadata.Chapters(ctx, tr)
	if err != nil {
		return "", err
	}
	path, err := p.saveArtifact(p.cfg.ChaptersDir, videoID+".txt", []byte(chapters+"\n"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\nsaved %s", chapters, path), nil
}

func (p *Pipeline) titleOnly(ctx context.Context, videoID string) (string, error) {
	video, err := p.platform.Video(ctx, videoID)
	if err != nil {
		return "", err
	}
	tr, err := p.fetchTranscript(ctx, videoID)
	if err != nil {
		return "", err
	}
	return p.metadata.Title(ctx, tr, video.Title)
}

// thumbnailOnly renders against the video's current title rather than a
// generated one, so the step works on episodes published before this tool.
func (p *Pipeline) thumbnailOnly(ctx context.Context, logger *slog.Logger, videoID string) (string, error) {
	video, err := p.platform.Video(ctx, videoID)
	if err != nil {
		return "", err
	}
	tr, err := p.fetchTranscript(ctx, videoID)
	if err != nil {
		logging.WarnWithContext(logger, "transcript unavailable for thumbnail", "transcript_missing",
			logging.Error(err),
			logging.String(logging.FieldImpact, "thumbnail topic falls back to the video title"))
		tr = nil
	}
	topic := p.metadata.Topic(ctx, tr, video.Title)
	image, err := p.thumbnails.Render(ctx, video.Title, topic, p.referenceImage(logger))
	if err != nil {
		return "", err
	}
	path, err := p.saveArtifact(p.cfg.ThumbnailsDir, videoID+".jpg", image)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("thumbnail rendered (%d bytes)\nsaved %s", len(image), path), nil
}

func (p *Pipeline) publishArtifacts(ctx context.Context, logger *slog.Logger, videoID string) (string, error) {
	video, err := p.platform.Video(ctx, videoID)
	if err != nil {
		return "", err
	}

	chapters, haveChapters, err := p.loadArtifact(p.cfg.ChaptersDir, videoID+".txt")
	if err != nil {
		return "", err
	}
	image, haveImage, err := p.loadArtifact(p.cfg.ThumbnailsDir, videoID+".jpg")
	if err != nil {
		return "", err
	}
	srt, haveSRT, err := p.loadArtifact(p.cfg.TranscriptsDir, videoID+".srt")
	if err != nil {
		return "", err
	}
	if !haveChapters && !haveImage && !haveSRT {
		return "", services.Wrap(services.ErrNotFound, "pipeline", "publish",
			"no stored artifacts for this video, run the generation steps first", nil)
	}

	var pushed []string
	if haveChapters {
		description := p.metadata.StaticDescription(strings.TrimSpace(string(chapters)), video.Title)
		if err := p.platform.UpdateSnippet(ctx, videoID, video.Title, description); err != nil {
			return "", err
		}
		pushed = append(pushed, "description")
	}
	if haveImage {
		if err := p.platform.SetThumbnail(ctx, videoID, image); err != nil {
			return "", err
		}
		pushed = append(pushed, "thumbnail")
	}
	if haveSRT {
		if err := p.platform.UpsertCaption(ctx, videoID, string(srt)); err != nil {
			return "", err
		}
		pushed = append(pushed, "captions")
	}

	logger.Info("stored artifacts republished",
		logging.String(logging.FieldEventType, "artifacts_published"),
		logging.String("pushed", strings.Join(pushed, ", ")))
	return "published " + strings.Join(pushed, ", "), nil
}

// loadArtifact reads a previously saved artifact. A missing file is not an
// error; publish pushes whatever subset exists.
func (p *Pipeline) loadArtifact(dir, name string) ([]byte, bool, error) {
	path := filepath.Join(dir, textutil.SanitizeFileName(name))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, true, nil
}
