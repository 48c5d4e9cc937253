package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeLLM()
	c.normalizeImages()
	c.normalizeVoice()
	c.normalizeRender()
	if err := c.normalizeDelivery(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RenderDir) == "" {
		c.Paths.RenderDir = defaultRenderDir
	}
	if c.Paths.RenderDir, err = expandPath(c.Paths.RenderDir); err != nil {
		return fmt.Errorf("paths.render_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = envValue("BOMSTUDIO_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = defaultStorageDriver
	}
	c.Storage.DSN = strings.TrimSpace(c.Storage.DSN)
	if c.Storage.DSN == "" {
		c.Storage.DSN = envValue("BOMSTUDIO_DATABASE_DSN")
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = envValue("LLM_API_KEY", "OPENAI_API_KEY")
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeImages() {
	c.Images.APIToken = strings.TrimSpace(c.Images.APIToken)
	if c.Images.APIToken == "" {
		c.Images.APIToken = envValue("REPLICATE_API_TOKEN")
	}
	c.Images.BaseURL = strings.TrimRight(strings.TrimSpace(c.Images.BaseURL), "/")
	if c.Images.BaseURL == "" {
		c.Images.BaseURL = defaultImagesBaseURL
	}
	c.Images.Model = strings.TrimSpace(c.Images.Model)
	if c.Images.Model == "" {
		c.Images.Model = defaultImagesModel
	}
	c.Images.AspectRatio = strings.TrimSpace(c.Images.AspectRatio)
	if c.Images.AspectRatio == "" {
		c.Images.AspectRatio = defaultImagesAspectRatio
	}
}

func (c *Config) normalizeVoice() {
	c.Voice.APIKey = strings.TrimSpace(c.Voice.APIKey)
	if c.Voice.APIKey == "" {
		c.Voice.APIKey = envValue("ELEVENLABS_API_KEY")
	}
	c.Voice.BaseURL = strings.TrimRight(strings.TrimSpace(c.Voice.BaseURL), "/")
	if c.Voice.BaseURL == "" {
		c.Voice.BaseURL = defaultVoiceBaseURL
	}
	c.Voice.Model = strings.TrimSpace(c.Voice.Model)
	if c.Voice.Model == "" {
		c.Voice.Model = defaultVoiceModel
	}
	c.Voice.DefaultVoice = strings.TrimSpace(c.Voice.DefaultVoice)
	if c.Voice.DefaultVoice == "" {
		c.Voice.DefaultVoice = defaultVoiceID
	}
	voices := make(map[string]string, len(c.Voice.Voices))
	for key, id := range c.Voice.Voices {
		key = strings.ToLower(strings.TrimSpace(key))
		id = strings.TrimSpace(id)
		if key == "" || id == "" {
			continue
		}
		voices[key] = id
	}
	c.Voice.Voices = voices
}

func (c *Config) normalizeRender() {
	c.Render.FFmpegBinary = strings.TrimSpace(c.Render.FFmpegBinary)
	if c.Render.FFmpegBinary == "" {
		c.Render.FFmpegBinary = defaultFFmpegBinary
	}
	c.Render.FFprobeBinary = strings.TrimSpace(c.Render.FFprobeBinary)
	if c.Render.FFprobeBinary == "" {
		c.Render.FFprobeBinary = defaultFFprobeBinary
	}
	c.Render.Format = strings.ToLower(strings.TrimSpace(c.Render.Format))
	if c.Render.Format == "" {
		c.Render.Format = defaultRenderFormat
	}
	if c.Render.FallbackAudioSeconds <= 0 {
		c.Render.FallbackAudioSeconds = defaultFallbackAudioSeconds
	}
}

func (c *Config) normalizeDelivery() error {
	c.Delivery.CredentialsFile = strings.TrimSpace(c.Delivery.CredentialsFile)
	if c.Delivery.CredentialsFile == "" {
		c.Delivery.CredentialsFile = envValue("GOOGLE_APPLICATION_CREDENTIALS")
	}
	var err error
	if c.Delivery.CredentialsFile, err = expandPath(c.Delivery.CredentialsFile); err != nil {
		return fmt.Errorf("delivery.credentials_file: %w", err)
	}
	c.Delivery.ParentFolderID = strings.TrimSpace(c.Delivery.ParentFolderID)
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envValue(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
