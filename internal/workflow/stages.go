package workflow

import (
	"context"

	"bomstudio/internal/services/render"
	"bomstudio/internal/services/scriptgen"
	"bomstudio/internal/store"
)

// Stage names used for timeouts, logging, and failure notes.
const (
	StageScript  = "script"
	StagePrompts = "prompts"
	StageImages  = "images"
	StageVoice   = "voice"
	StageRender  = "render"
)

// ScriptWriter produces the structured script for a brief.
type ScriptWriter interface {
	GenerateScript(ctx context.Context, brief scriptgen.Brief) (*store.Script, error)
}

// PromptWriter produces one image prompt per scene.
type PromptWriter interface {
	GeneratePrompts(ctx context.Context, script *store.Script, industry string) ([]string, error)
}

// ImageGenerator turns prompts into image URLs, all or nothing, preserving order.
type ImageGenerator interface {
	GenerateAll(ctx context.Context, prompts []string) ([]string, error)
}

// VoiceSynthesizer renders voiceover audio.
type VoiceSynthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) ([]byte, error)
}

// Renderer muxes images and audio into a video file.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (render.Result, error)
}

// Stages bundles the external collaborators of a pipeline run.
type Stages struct {
	Script  ScriptWriter
	Prompts PromptWriter
	Images  ImageGenerator
	Voice   VoiceSynthesizer
	Render  Renderer
}

func (s Stages) complete() bool {
	return s.Script != nil && s.Prompts != nil && s.Images != nil && s.Voice != nil && s.Render != nil
}

// Request is a normalized intake submission.
type Request struct {
	Email string
	Brief scriptgen.Brief
	// Voice optionally names a configured voice or a raw voice id.
	Voice string
	// Format overrides the configured render format.
	Format string
}

// Submission identifies the entities created or resolved for a request.
type Submission struct {
	ClientID  string `json:"client_id"`
	ProjectID string `json:"project_id"`
	VideoID   string `json:"video_id"`
}
