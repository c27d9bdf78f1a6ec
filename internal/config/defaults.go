package config

const (
	defaultStateFile       = "~/.local/share/postcast/state.json"
	defaultOutputDir       = "~/.local/share/postcast/output"
	defaultLogDir          = "~/.local/share/postcast/logs"
	defaultCredentialsFile = "~/.config/postcast/client_secret.json"
	defaultTokenFile       = "~/.config/postcast/token.json"
	defaultCaptionLanguage = "es"
	defaultRequestTimeout  = 60

	defaultGeminiBaseURL    = "https://generativelanguage.googleapis.com"
	defaultGeminiModel      = "gemini-2.5-flash"
	defaultGeminiImageModel = "gemini-3-pro-image-preview"
	defaultGeminiTimeout    = 120
	defaultTextRateCalls    = 10
	defaultTextRatePeriod   = 60
	defaultImageRateCalls   = 5
	defaultImageRatePeriod  = 60

	defaultTranscriptLanguage = "es"
	defaultTranscriptAttempts = 3
	defaultTranscriptWaitStep = 60

	defaultRetryMaxAttempts = 3
	defaultRetryBaseDelay   = 4
	defaultRetryMaxDelay    = 60

	defaultNotifyTimeout = 10

	defaultLogFormat = "auto"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateFile: defaultStateFile,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		YouTube: YouTube{
			CredentialsFile: defaultCredentialsFile,
			TokenFile:       defaultTokenFile,
			CaptionLanguage: defaultCaptionLanguage,
			RequestTimeout:  defaultRequestTimeout,
		},
		Gemini: Gemini{
			BaseURL:         defaultGeminiBaseURL,
			Model:           defaultGeminiModel,
			ImageModel:      defaultGeminiImageModel,
			TimeoutSeconds:  defaultGeminiTimeout,
			TextRateCalls:   defaultTextRateCalls,
			TextRatePeriod:  defaultTextRatePeriod,
			ImageRateCalls:  defaultImageRateCalls,
			ImageRatePeriod: defaultImageRatePeriod,
		},
		Transcript: Transcript{
			Language:        defaultTranscriptLanguage,
			Attempts:        defaultTranscriptAttempts,
			WaitStepSeconds: defaultTranscriptWaitStep,
		},
		Retry: Retry{
			MaxAttempts:      defaultRetryMaxAttempts,
			BaseDelaySeconds: defaultRetryBaseDelay,
			MaxDelaySeconds:  defaultRetryMaxDelay,
		},
		Notifications: Notifications{
			Enabled:        true,
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
