package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateImages(); err != nil {
		return err
	}
	if err := c.validateVoice(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case "sqlite":
		return nil
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required when storage.driver is postgres (or set BOMSTUDIO_DATABASE_DSN)")
		}
		return nil
	default:
		return fmt.Errorf("storage.driver: unsupported value %q", c.Storage.Driver)
	}
}

func (c *Config) validateImages() error {
	if c.Images.PollAttempts <= 0 {
		return errors.New("images.poll_attempts must be positive")
	}
	if c.Images.PollIntervalMillis <= 0 {
		return errors.New("images.poll_interval_ms must be positive")
	}
	return nil
}

func (c *Config) validateVoice() error {
	if c.Voice.Stability < 0 || c.Voice.Stability > 1 {
		return errors.New("voice.stability must be between 0 and 1")
	}
	if c.Voice.SimilarityBoost < 0 || c.Voice.SimilarityBoost > 1 {
		return errors.New("voice.similarity_boost must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.Format {
	case "vertical", "square", "horizontal":
		return nil
	default:
		return fmt.Errorf("render.format: unsupported value %q", c.Render.Format)
	}
}

func (c *Config) validateDelivery() error {
	if c.Delivery.Enabled && c.Delivery.CredentialsFile == "" {
		return errors.New("delivery.credentials_file is required when delivery is enabled (or set GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	timeouts := map[string]int{
		"pipeline.script_timeout_seconds": c.Pipeline.ScriptTimeoutSeconds,
		"pipeline.images_timeout_seconds": c.Pipeline.ImagesTimeoutSeconds,
		"pipeline.voice_timeout_seconds":  c.Pipeline.VoiceTimeoutSeconds,
		"pipeline.render_timeout_seconds": c.Pipeline.RenderTimeoutSeconds,
	}
	for key, value := range timeouts {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.Pipeline.OverallTimeoutSeconds < 0 {
		return errors.New("pipeline.overall_timeout_seconds must be zero (disabled) or positive")
	}
	costs := c.Pipeline.Costs
	if costs.ScriptCents < 0 || costs.PromptsCents < 0 || costs.ImageCents < 0 || costs.VoiceCents < 0 {
		return errors.New("pipeline.costs entries must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
