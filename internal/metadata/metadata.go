package metadata

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"postcast/internal/logging"
)

const (
	// maxTitleLength is the hard cap the platform applies to video titles.
	maxTitleLength = 100

	chaptersPromptLimit = 8000
	titlePromptLimit    = 8000
	metadataPromptLimit = 4000
	summaryPromptLimit  = 12000
	topicPromptLimit    = 2000

	chaptersSampleInterval = 30 * time.Second

	chaptersFallback = "0:00 Video completo"
	topicFallback    = "Contenido de video educativo"
)

// episodePattern extracts the episode number from titles such as
// "G33K TEAM - S1E30 | ...".
var episodePattern = regexp.MustCompile(`S1E(\d+)`)

// TextGenerator is the slice of the AI client this package needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Config carries the show presentation applied to generated text. All fields
// are optional; an empty config produces plain, show-agnostic metadata.
type Config struct {
	// ShowName prefixes titles and the description footer, e.g. "G33K TEAM".
	ShowName string
	// Hashtags are appended as the last description line.
	Hashtags []string
	// DescriptionFooter replaces the built-in footer block when set.
	DescriptionFooter string
}

// Generator builds episode metadata by prompting the text model and
// validating what comes back.
type Generator struct {
	ai     TextGenerator
	cfg    Config
	logger *slog.Logger
}

// New creates a metadata generator on top of the supplied text model client.
func New(cfg Config, ai TextGenerator, logger *slog.Logger) *Generator {
	return &Generator{
		ai:     ai,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "metadata"),
	}
}

// EpisodeNumber extracts the season-one episode number from a video title.
// It reports false when the title carries no episode marker.
func EpisodeNumber(title string) (int, bool) {
	match := episodePattern.FindStringSubmatch(title)
	if match == nil {
		return 0, false
	}
	number, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return number, true
}
