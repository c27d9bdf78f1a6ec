package testsupport

import (
	"path/filepath"
	"testing"

	"postcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.YouTube.ChannelID = "UC-test"
	cfgVal.YouTube.CredentialsFile = filepath.Join(base, "client_secret.json")
	cfgVal.YouTube.TokenFile = filepath.Join(base, "token.json")
	cfgVal.Gemini.APIKey = "test"
	cfgVal.Paths.StateFile = filepath.Join(base, "state.json")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGeminiKey sets the Gemini API key on the test config.
func WithGeminiKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Gemini.APIKey = key
	}
}

// WithChannelID overrides the YouTube channel on the test config.
func WithChannelID(id string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.YouTube.ChannelID = id
	}
}

// WithTranscriptLanguage overrides the preferred transcript language.
func WithTranscriptLanguage(lang string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcript.Language = lang
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
