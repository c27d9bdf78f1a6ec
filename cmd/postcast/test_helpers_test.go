package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"postcast/internal/config"
	"postcast/internal/state"
	"postcast/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t,
		testsupport.WithChannelID("UC-test-channel"),
		testsupport.WithGeminiKey("test-key"))
	cfg.Episode.ShowName = "G33K TEAM"
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "error"
	cfg.Notifications.Enabled = false

	configPath := filepath.Join(homeDir, ".config", "postcast", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	loaded, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load test config: %v", err)
	}

	return &cliTestEnv{
		cfg:        loaded,
		configPath: configPath,
		baseDir:    base,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_file = %q
output_dir = %q
log_dir = %q

[youtube]
channel_id = %q
credentials_file = %q
token_file = %q

[gemini]
api_key = %q

[notifications]
enabled = %t

[episode]
show_name = %q

[logging]
format = %q
level = %q
`,
		cfg.Paths.StateFile,
		cfg.Paths.OutputDir,
		cfg.Paths.LogDir,
		cfg.YouTube.ChannelID,
		cfg.YouTube.CredentialsFile,
		cfg.YouTube.TokenFile,
		cfg.Gemini.APIKey,
		cfg.Notifications.Enabled,
		cfg.Episode.ShowName,
		cfg.Logging.Format,
		cfg.Logging.Level,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// withStoreFile opens the state store just long enough for fn to seed or
// inspect it, so the command under test can grab the file lock afterwards.
func withStoreFile(t *testing.T, env *cliTestEnv, opts []state.Option, fn func(*state.Store)) {
	t.Helper()
	store, err := state.Open(env.cfg.Paths.StateFile, nil, opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	fn(store)
}

func allSteps() state.Steps {
	return state.Steps{Transcript: true, Metadata: true, Thumbnail: true, Captions: true}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
