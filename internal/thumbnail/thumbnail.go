package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"

	"postcast/internal/logging"
	"postcast/internal/metadata"
)

const (
	thumbWidth  = 1280
	thumbHeight = 720

	// maxFileBytes is the platform cap for custom thumbnails.
	maxFileBytes = 2 << 20

	jpegStartQuality = 85
	jpegFloorQuality = 60
	jpegQualityStep  = 5

	badgeFontSize = 48
	labelFontSize = 36
	labelMaxRunes = 25

	defaultTheme = "Contenido de video educativo"
)

// ImageGenerator is the slice of the AI client this package needs.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
	GenerateImageWithReference(ctx context.Context, prompt string, reference []byte, mimeType string) ([]byte, error)
}

// Config carries the show presentation applied to generated thumbnails.
type Config struct {
	// ShowName is rendered by the model as the channel logo when a reference
	// image is supplied.
	ShowName string
}

// Renderer produces finished thumbnail JPEGs for episodes.
type Renderer struct {
	ai     ImageGenerator
	cfg    Config
	logger *slog.Logger

	fontOnce  sync.Once
	fontErr   error
	badgeFace font.Face
	labelFace font.Face
}

// New creates a thumbnail renderer on top of the supplied image model client.
func New(cfg Config, ai ImageGenerator, logger *slog.Logger) *Renderer {
	return &Renderer{
		ai:     ai,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// Render generates the background image for the episode, composites the
// episode badge and topic label, and returns the encoded JPEG. The title
// drives the badge number, label text and monitor keywords; theme is the
// episode subject sentence used to steer the background (the title stands in
// when it is empty). A non-empty reference image switches generation to
// style-copy mode.
func (r *Renderer) Render(ctx context.Context, title, theme string, reference []byte) ([]byte, error) {
	title = strings.TrimSpace(title)
	info := ExtractTopicInfo(title)

	theme = strings.TrimSpace(theme)
	if theme == "" {
		theme = info.Topic
	}
	if theme == "" {
		theme = defaultTheme
	}

	var (
		raw []byte
		err error
	)
	if len(reference) > 0 {
		raw, err = r.ai.GenerateImageWithReference(ctx,
			referencePrompt(r.cfg.ShowName, theme, info), reference, sniffImageMIME(reference))
	} else {
		raw, err = r.ai.GenerateImage(ctx, standalonePrompt(theme, info))
	}
	if err != nil {
		return nil, fmt.Errorf("generate thumbnail image: %w", err)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode generated image: %w", err)
	}
	canvas := composeCanvas(src)

	badgeFace, labelFace, err := r.faces()
	if err != nil {
		return nil, err
	}
	if episode, ok := metadata.EpisodeNumber(title); ok {
		drawBadge(canvas, badgeFace, episode)
	}
	if info.Topic != "" {
		drawLabel(canvas, labelFace, info.Topic)
	}

	encoded, quality, err := encodeJPEG(canvas)
	if err != nil {
		return nil, err
	}
	if len(encoded) > maxFileBytes {
		logging.WarnWithContext(r.logger, "thumbnail still over the platform cap at minimum quality", "thumbnail_oversize",
			logging.Int("size_bytes", len(encoded)),
			logging.String(logging.FieldErrorHint, "the platform rejects thumbnails over 2 MiB"),
			logging.String(logging.FieldImpact, "the thumbnail upload will likely be rejected"))
	}
	r.logger.Debug("thumbnail rendered",
		logging.Int("size_bytes", len(encoded)),
		logging.Int("jpeg_quality", quality),
		logging.Bool("reference_guided", len(reference) > 0))
	return encoded, nil
}

func (r *Renderer) faces() (font.Face, font.Face, error) {
	r.fontOnce.Do(func() {
		parsed, err := opentype.Parse(gobold.TTF)
		if err != nil {
			r.fontErr = fmt.Errorf("parse embedded font: %w", err)
			return
		}
		r.badgeFace, r.fontErr = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size: badgeFontSize, DPI: 72, Hinting: font.HintingFull,
		})
		if r.fontErr != nil {
			return
		}
		r.labelFace, r.fontErr = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size: labelFontSize, DPI: 72, Hinting: font.HintingFull,
		})
	})
	if r.fontErr != nil {
		return nil, nil, r.fontErr
	}
	return r.badgeFace, r.labelFace, nil
}

func sniffImageMIME(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	return http.DetectContentType(data)
}
