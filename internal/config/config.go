package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory configuration.
type Paths struct {
	StateFile string `toml:"state_file"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// YouTube contains configuration for the YouTube Data API.
type YouTube struct {
	ChannelID       string `toml:"channel_id"`
	CredentialsFile string `toml:"credentials_file"`
	TokenFile       string `toml:"token_file"`
	CaptionLanguage string `toml:"caption_language"`
	CaptionName     string `toml:"caption_name"`
	RequestTimeout  int    `toml:"request_timeout"`
}

// Gemini contains configuration for the generative AI service.
type Gemini struct {
	APIKey          string `toml:"api_key"`
	BaseURL         string `toml:"base_url"`
	Model           string `toml:"model"`
	ImageModel      string `toml:"image_model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	TextRateCalls   int    `toml:"text_rate_calls"`
	TextRatePeriod  int    `toml:"text_rate_period"`
	ImageRateCalls  int    `toml:"image_rate_calls"`
	ImageRatePeriod int    `toml:"image_rate_period"`
}

// Transcript contains configuration for transcript fetching.
type Transcript struct {
	Language        string `toml:"language"`
	Attempts        int    `toml:"attempts"`
	WaitStepSeconds int    `toml:"wait_step_seconds"`
}

// Retry contains the platform-API retry policy settings.
type Retry struct {
	MaxAttempts      int `toml:"max_attempts"`
	BaseDelaySeconds int `toml:"base_delay_seconds"`
	MaxDelaySeconds  int `toml:"max_delay_seconds"`
}

// Notifications contains configuration for Telegram operator notifications.
type Notifications struct {
	Enabled          bool   `toml:"enabled"`
	TelegramBotToken string `toml:"telegram_bot_token"`
	TelegramChatID   string `toml:"telegram_chat_id"`
	RequestTimeout   int    `toml:"request_timeout"`
}

// Episode contains presentation settings applied to generated metadata.
type Episode struct {
	ShowName          string   `toml:"show_name"`
	Hashtags          []string `toml:"hashtags"`
	DescriptionFooter string   `toml:"description_footer"`
	// ReferenceThumbnail is an optional image whose style the generated
	// thumbnails copy (channel cast and palette).
	ReferenceThumbnail string `toml:"reference_thumbnail"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for postcast.
//
// Configuration sections by subsystem:
//   - Paths: state file, artifact output tree, and log directory
//   - YouTube: channel, OAuth credential locations, caption upload settings
//   - Gemini: generative AI connection, models, and rate-limit budgets
//   - Transcript: preferred language and availability-lag retry cadence
//   - Retry: exponential backoff policy for platform API calls
//   - Notifications: Telegram best-effort operator channel
//   - Episode: show naming, hashtags, and description boilerplate
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	YouTube       YouTube       `toml:"youtube"`
	Gemini        Gemini        `toml:"gemini"`
	Transcript    Transcript    `toml:"transcript"`
	Retry         Retry         `toml:"retry"`
	Notifications Notifications `toml:"notifications"`
	Episode       Episode       `toml:"episode"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/postcast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("postcast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// TranscriptsDir returns the directory for saved transcript artifacts.
func (c *Config) TranscriptsDir() string {
	return filepath.Join(c.Paths.OutputDir, "transcripts")
}

// ChaptersDir returns the directory for saved chapter artifacts.
func (c *Config) ChaptersDir() string {
	return filepath.Join(c.Paths.OutputDir, "chapters")
}

// ThumbnailsDir returns the directory for rendered thumbnails.
func (c *Config) ThumbnailsDir() string {
	return filepath.Join(c.Paths.OutputDir, "thumbnails")
}

// NewslettersDir returns the directory for generated newsletter digests.
func (c *Config) NewslettersDir() string {
	return filepath.Join(c.Paths.OutputDir, "newsletters")
}

// TranscriptLanguages returns the caption language priority order: the
// configured language first, then the fixed fallback chain.
func (c *Config) TranscriptLanguages() []string {
	languages := []string{c.Transcript.Language}
	for _, fallback := range []string{"es", "en"} {
		if fallback != c.Transcript.Language {
			languages = append(languages, fallback)
		}
	}
	return languages
}

// TranscriptWaitStep returns the per-attempt wait increment for the
// availability-lag retry.
func (c *Config) TranscriptWaitStep() time.Duration {
	return time.Duration(c.Transcript.WaitStepSeconds) * time.Second
}

// RetryBaseDelay returns the initial backoff delay for platform API retries.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelaySeconds) * time.Second
}

// RetryMaxDelay returns the backoff delay cap for platform API retries.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Retry.MaxDelaySeconds) * time.Second
}

// EnsureDirectories creates the artifact, state, and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.LogDir,
		filepath.Dir(c.Paths.StateFile),
		c.TranscriptsDir(),
		c.ChaptersDir(),
		c.ThumbnailsDir(),
		c.NewslettersDir(),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
