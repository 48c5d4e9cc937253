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

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	RenderDir string `toml:"render_dir"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Storage selects the entity store backend.
type Storage struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// LLM contains connection settings for script and prompt generation.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Images contains configuration for the diffusion model API.
type Images struct {
	APIToken           string `toml:"api_token"`
	BaseURL            string `toml:"base_url"`
	Model              string `toml:"model"`
	AspectRatio        string `toml:"aspect_ratio"`
	PollAttempts       int    `toml:"poll_attempts"`
	PollIntervalMillis int    `toml:"poll_interval_ms"`
}

// Voice contains configuration for text-to-speech synthesis.
type Voice struct {
	APIKey          string            `toml:"api_key"`
	BaseURL         string            `toml:"base_url"`
	Model           string            `toml:"model"`
	Stability       float64           `toml:"stability"`
	SimilarityBoost float64           `toml:"similarity_boost"`
	DefaultVoice    string            `toml:"default_voice"`
	Voices          map[string]string `toml:"voices"`
}

// Render contains configuration for local image+audio muxing.
type Render struct {
	FFmpegBinary         string `toml:"ffmpeg_binary"`
	FFprobeBinary        string `toml:"ffprobe_binary"`
	Format               string `toml:"format"`
	FallbackAudioSeconds int    `toml:"fallback_audio_seconds"`
}

// Delivery contains configuration for Google Drive uploads.
type Delivery struct {
	Enabled         bool   `toml:"enabled"`
	CredentialsFile string `toml:"credentials_file"`
	ParentFolderID  string `toml:"parent_folder_id"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	DraftReady     bool   `toml:"draft_ready"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Costs holds per-call estimates, in cents, appended to the usage ledger.
type Costs struct {
	ScriptCents  int `toml:"script_cents"`
	PromptsCents int `toml:"prompts_cents"`
	ImageCents   int `toml:"image_cents"`
	VoiceCents   int `toml:"voice_cents"`
}

// Pipeline contains stage timeouts and cost estimates for video generation.
type Pipeline struct {
	ScriptTimeoutSeconds  int   `toml:"script_timeout_seconds"`
	ImagesTimeoutSeconds  int   `toml:"images_timeout_seconds"`
	VoiceTimeoutSeconds   int   `toml:"voice_timeout_seconds"`
	RenderTimeoutSeconds  int   `toml:"render_timeout_seconds"`
	OverallTimeoutSeconds int   `toml:"overall_timeout_seconds"`
	Costs                 Costs `toml:"costs"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the studio.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and render directories plus the API bind address
//   - Storage: sqlite (default) or postgres entity store
//   - LLM: script and image-prompt generation
//   - Images: diffusion model API and polling bounds
//   - Voice: text-to-speech settings and per-language voices
//   - Render: ffmpeg/ffprobe binaries and output format
//   - Delivery: Google Drive uploads on deliver
//   - Notifications: ntfy push notification settings
//   - Pipeline: stage timeouts, overall deadline, cost estimates
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	LLM           LLM           `toml:"llm"`
	Images        Images        `toml:"images"`
	Voice         Voice         `toml:"voice"`
	Render        Render        `toml:"render"`
	Delivery      Delivery      `toml:"delivery"`
	Notifications Notifications `toml:"notifications"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bomstudio.toml")
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

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.RenderDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "bomstudio.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "bomstudio.lock")
}

// StageTimeout returns the configured timeout for a pipeline stage name.
// Unknown stages fall back to the script timeout.
func (c *Config) StageTimeout(stage string) time.Duration {
	seconds := c.Pipeline.ScriptTimeoutSeconds
	switch stage {
	case "images":
		seconds = c.Pipeline.ImagesTimeoutSeconds
	case "voice":
		seconds = c.Pipeline.VoiceTimeoutSeconds
	case "render":
		seconds = c.Pipeline.RenderTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

// OverallTimeout returns the whole-pipeline deadline, or zero when disabled.
func (c *Config) OverallTimeout() time.Duration {
	if c.Pipeline.OverallTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Pipeline.OverallTimeoutSeconds) * time.Second
}

// PollInterval returns the image polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Images.PollIntervalMillis) * time.Millisecond
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
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
