package daemon

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"bomstudio/internal/config"
	"bomstudio/internal/logging"
	"bomstudio/internal/services/delivery"
	"bomstudio/internal/services/imagegen"
	"bomstudio/internal/services/llm"
	"bomstudio/internal/services/render"
	"bomstudio/internal/services/scriptgen"
	"bomstudio/internal/services/voice"
	"bomstudio/internal/video"
	"bomstudio/internal/workflow"
)

// BuildStages constructs the production pipeline clients from cfg.
func BuildStages(cfg *config.Config, logger *slog.Logger) (workflow.Stages, error) {
	completer := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Temperature:    float32(cfg.LLM.Temperature),
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	writer, err := scriptgen.New(completer)
	if err != nil {
		return workflow.Stages{}, err
	}
	images := imagegen.New(imagegen.Config{
		APIToken:     cfg.Images.APIToken,
		BaseURL:      cfg.Images.BaseURL,
		Model:        cfg.Images.Model,
		AspectRatio:  cfg.Images.AspectRatio,
		PollAttempts: cfg.Images.PollAttempts,
		PollInterval: cfg.PollInterval(),
	})
	speech := voice.New(voice.Config{
		APIKey:          cfg.Voice.APIKey,
		BaseURL:         cfg.Voice.BaseURL,
		Model:           cfg.Voice.Model,
		Stability:       cfg.Voice.Stability,
		SimilarityBoost: cfg.Voice.SimilarityBoost,
		DefaultVoice:    cfg.Voice.DefaultVoice,
		Voices:          cfg.Voice.Voices,
	})
	renderer := render.New(render.Config{
		FFmpegBinary:  cfg.Render.FFmpegBinary,
		FFprobeBinary: cfg.Render.FFprobeBinary,
		WorkDir:       cfg.Paths.RenderDir,
		FallbackAudio: time.Duration(cfg.Render.FallbackAudioSeconds) * time.Second,
	}, render.WithLogger(logging.NewComponentLogger(logger, "render")))

	return workflow.Stages{
		Script:  writer,
		Prompts: writer,
		Images:  images,
		Voice:   speech,
		Render:  renderer,
	}, nil
}

// BuildDeliverer returns the Drive deliverer when delivery is enabled, or nil.
func BuildDeliverer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (video.Deliverer, error) {
	if !cfg.Delivery.Enabled || strings.TrimSpace(cfg.Delivery.CredentialsFile) == "" {
		return nil, nil
	}
	return delivery.New(ctx, delivery.Config{
		CredentialsFile: cfg.Delivery.CredentialsFile,
		ParentFolderID:  cfg.Delivery.ParentFolderID,
	}, logging.NewComponentLogger(logger, "delivery"))
}
