package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"bomstudio/internal/services"
	"bomstudio/internal/services/llm"
	"bomstudio/internal/store"
)

const stageName = "script"

// Brief is the normalized business context a script is written from.
type Brief struct {
	BusinessName       string `json:"business_name"`
	WhatTheySell       string `json:"what_they_sell"`
	TargetCustomer     string `json:"target_customer"`
	WhatMakesDifferent string `json:"what_makes_different"`
	Tone               string `json:"tone"`
	Language           string `json:"language"`
	Topic              string `json:"topic"`
}

// Industry is the prompt hint for image generation.
func (b Brief) Industry() string {
	if strings.TrimSpace(b.WhatTheySell) != "" {
		return b.WhatTheySell
	}
	return "business"
}

// LanguageName renders the brief language as an English display name,
// falling back to the raw code when it cannot be parsed.
func LanguageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "English"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// Completer issues JSON-mode chat completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Writer generates scripts and image prompts.
type Writer struct {
	client  Completer
	prompts *prompts
}

// New builds a Writer backed by client using the embedded prompt templates.
func New(client Completer) (*Writer, error) {
	if client == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "llm client required", nil)
	}
	p, err := loadPrompts(promptsYAML)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "load prompts", "", err)
	}
	return &Writer{client: client, prompts: p}, nil
}

// GenerateScript writes a script for brief. Malformed or empty model output
// fails with services.ErrGeneration.
func (w *Writer) GenerateScript(ctx context.Context, brief Brief) (*store.Script, error) {
	data := struct {
		Brief
		LanguageName string
	}{Brief: brief, LanguageName: LanguageName(brief.Language)}
	system, user, err := w.prompts.script.render(data)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, stageName, "render prompt", "", err)
	}

	content, err := w.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, classify("generate script", err)
	}
	var script store.Script
	if err := llm.DecodeLLMJSON(content, &script); err != nil {
		return nil, services.Wrap(services.ErrGeneration, stageName, "generate script", "model returned malformed script", err)
	}
	script.Hook = strings.TrimSpace(script.Hook)
	script.CTA = strings.TrimSpace(script.CTA)
	scenes := script.Scenes[:0]
	for _, scene := range script.Scenes {
		scene.Text = strings.TrimSpace(scene.Text)
		scene.Visual = strings.TrimSpace(scene.Visual)
		if scene.Text == "" && scene.Visual == "" {
			continue
		}
		scenes = append(scenes, scene)
	}
	script.Scenes = scenes
	if script.IsEmpty() || len(script.Scenes) == 0 {
		return nil, services.Wrap(services.ErrGeneration, stageName, "generate script", "model returned an empty script", nil)
	}
	return &script, nil
}

type promptsResponse struct {
	Prompts []struct {
		Scene  int    `json:"scene"`
		Prompt string `json:"prompt"`
	} `json:"prompts"`
}

// GeneratePrompts returns one image prompt per scene, in scene order. Scenes
// the model skipped fall back to the scene's visual description.
func (w *Writer) GeneratePrompts(ctx context.Context, script *store.Script, industry string) ([]string, error) {
	if script == nil || len(script.Scenes) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "generate prompts", "script has no scenes", nil)
	}
	data := struct {
		Industry string
		Scenes   []store.Scene
	}{Industry: industry, Scenes: script.Scenes}
	system, user, err := w.prompts.imagePrompts.render(data)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, stageName, "render prompt", "", err)
	}

	content, err := w.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return nil, classify("generate prompts", err)
	}
	var resp promptsResponse
	if err := llm.DecodeLLMJSON(content, &resp); err != nil {
		return nil, services.Wrap(services.ErrGeneration, stageName, "generate prompts", "model returned malformed prompts", err)
	}

	prompts := make([]string, len(script.Scenes))
	for i, item := range resp.Prompts {
		idx := i
		if item.Scene >= 1 && item.Scene <= len(prompts) {
			idx = item.Scene - 1
		}
		if idx >= len(prompts) || prompts[idx] != "" {
			continue
		}
		prompts[idx] = strings.TrimSpace(item.Prompt)
	}
	for i, prompt := range prompts {
		if prompt != "" {
			continue
		}
		visual := script.Scenes[i].Visual
		if visual == "" {
			visual = script.Scenes[i].Text
		}
		if strings.TrimSpace(visual) == "" {
			return nil, services.Wrap(services.ErrGeneration, stageName, "generate prompts",
				fmt.Sprintf("no prompt for scene %d", i+1), nil)
		}
		prompts[i] = fmt.Sprintf("Photorealistic vertical photo for a %s business: %s", industry, visual)
	}
	return prompts, nil
}

func classify(operation string, err error) error {
	if services.Kind(err) == services.KindTimeout {
		return services.Wrap(services.ErrTimeout, stageName, operation, "llm call timed out", err)
	}
	return services.Wrap(services.ErrGeneration, stageName, operation, "llm call failed", err)
}
