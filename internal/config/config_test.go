package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"bomstudio/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_API_KEY", "OPENAI_API_KEY", "REPLICATE_API_TOKEN", "ELEVENLABS_API_KEY",
		"GOOGLE_APPLICATION_CREDENTIALS", "BOMSTUDIO_DATABASE_DSN", "BOMSTUDIO_API_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPathsAndReadsEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("REPLICATE_API_TOKEN", "r8-token")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "bomstudio")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "bomstudio.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.Images.APIToken != "r8-token" {
		t.Fatalf("expected images token from env, got %q", cfg.Images.APIToken)
	}
	if cfg.Voice.APIKey != "el-key" {
		t.Fatalf("expected voice key from env, got %q", cfg.Voice.APIKey)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Storage.Driver)
	}
	if cfg.Images.PollAttempts != 60 || cfg.PollInterval() != time.Second {
		t.Fatalf("unexpected polling bounds: %d attempts every %s", cfg.Images.PollAttempts, cfg.PollInterval())
	}
	if cfg.Voice.Voices["nl"] != "pNInz6obpgDQGcFmaJgB" {
		t.Fatalf("expected default dutch voice, got %v", cfg.Voice.Voices)
	}
}

func TestLoadCustomConfigOverridesDefaults(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.toml")
	content := `
[paths]
data_dir = "` + filepath.ToSlash(filepath.Join(dir, "data")) + `"
api_bind = "0.0.0.0:9000"

[render]
format = "Square"

[voice.voices]
EN = "voice-en"

[pipeline]
render_timeout_seconds = 42
overall_timeout_seconds = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind %q", cfg.Paths.APIBind)
	}
	if cfg.Render.Format != "square" {
		t.Fatalf("expected lower-cased render format, got %q", cfg.Render.Format)
	}
	if cfg.Voice.Voices["en"] != "voice-en" {
		t.Fatalf("expected normalized voice key, got %v", cfg.Voice.Voices)
	}
	if cfg.StageTimeout("render") != 42*time.Second {
		t.Fatalf("unexpected render timeout %s", cfg.StageTimeout("render"))
	}
	if cfg.OverallTimeout() != 0 {
		t.Fatalf("expected overall timeout disabled, got %s", cfg.OverallTimeout())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"storage.driver":       func(c *config.Config) { c.Storage.Driver = "mysql" },
		"storage.dsn":          func(c *config.Config) { c.Storage.Driver = "postgres"; c.Storage.DSN = "" },
		"images.poll_attempts": func(c *config.Config) { c.Images.PollAttempts = 0 },
		"render.format":        func(c *config.Config) { c.Render.Format = "portrait" },
		"voice.stability":      func(c *config.Config) { c.Voice.Stability = 2 },
		"delivery.credentials": func(c *config.Config) { c.Delivery.Enabled = true; c.Delivery.CredentialsFile = "" },
		"pipeline.voice":       func(c *config.Config) { c.Pipeline.VoiceTimeoutSeconds = 0 },
		"pipeline.costs":       func(c *config.Config) { c.Pipeline.Costs.ImageCents = -1 },
		"logging.format":       func(c *config.Config) { c.Logging.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", name)
			}
		})
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if !strings.Contains(string(data), "[pipeline.costs]") {
		t.Fatal("expected sample to document cost estimates")
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.RenderDir = filepath.Join(base, "renders")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.RenderDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s to exist", dir)
		}
	}
}
