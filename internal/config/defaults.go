package config

const (
	defaultConfigPath           = "~/.config/bomstudio/config.toml"
	defaultDataDir              = "~/.local/share/bomstudio"
	defaultLogDir               = "~/.local/share/bomstudio/logs"
	defaultRenderDir            = "~/.local/share/bomstudio/renders"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultStorageDriver        = "sqlite"
	defaultLLMBaseURL           = "https://api.openai.com/v1"
	defaultLLMModel             = "gpt-4o-mini"
	defaultLLMTemperature       = 0.8
	defaultLLMTimeoutSeconds    = 60
	defaultImagesBaseURL        = "https://api.replicate.com/v1"
	defaultImagesModel          = "black-forest-labs/flux-schnell"
	defaultImagesAspectRatio    = "9:16"
	defaultImagesPollAttempts   = 60
	defaultImagesPollIntervalMS = 1000
	defaultVoiceBaseURL         = "https://api.elevenlabs.io/v1"
	defaultVoiceModel           = "eleven_multilingual_v2"
	defaultVoiceStability       = 0.5
	defaultVoiceSimilarity      = 0.75
	defaultVoiceID              = "pNInz6obpgDQGcFmaJgB"
	defaultFemaleVoiceID        = "21m00Tcm4TlvDq8ikWAM"
	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultRenderFormat         = "vertical"
	defaultFallbackAudioSeconds = 30
	defaultNotifyTimeout        = 10
	defaultScriptTimeout        = 120
	defaultImagesTimeout        = 180
	defaultVoiceTimeout         = 60
	defaultRenderTimeout        = 600
	defaultOverallTimeout       = 1800
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			RenderDir: defaultRenderDir,
			APIBind:   defaultAPIBind,
		},
		Storage: Storage{
			Driver: defaultStorageDriver,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Images: Images{
			BaseURL:            defaultImagesBaseURL,
			Model:              defaultImagesModel,
			AspectRatio:        defaultImagesAspectRatio,
			PollAttempts:       defaultImagesPollAttempts,
			PollIntervalMillis: defaultImagesPollIntervalMS,
		},
		Voice: Voice{
			BaseURL:         defaultVoiceBaseURL,
			Model:           defaultVoiceModel,
			Stability:       defaultVoiceStability,
			SimilarityBoost: defaultVoiceSimilarity,
			DefaultVoice:    defaultVoiceID,
			Voices: map[string]string{
				"nl":     defaultVoiceID,
				"en":     defaultVoiceID,
				"female": defaultFemaleVoiceID,
			},
		},
		Render: Render{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			Format:               defaultRenderFormat,
			FallbackAudioSeconds: defaultFallbackAudioSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			DraftReady:     true,
			Review:         true,
			Errors:         true,
		},
		Pipeline: Pipeline{
			ScriptTimeoutSeconds:  defaultScriptTimeout,
			ImagesTimeoutSeconds:  defaultImagesTimeout,
			VoiceTimeoutSeconds:   defaultVoiceTimeout,
			RenderTimeoutSeconds:  defaultRenderTimeout,
			OverallTimeoutSeconds: defaultOverallTimeout,
			Costs: Costs{
				ScriptCents:  2,
				PromptsCents: 1,
				ImageCents:   3,
				VoiceCents:   12,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
