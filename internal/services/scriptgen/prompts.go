package scriptgen

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptPair struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type promptSet struct {
	Script       promptPair `yaml:"script"`
	ImagePrompts promptPair `yaml:"image_prompts"`
}

type compiledPair struct {
	system *template.Template
	user   *template.Template
}

type prompts struct {
	script       compiledPair
	imagePrompts compiledPair
}

var templateFuncs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
}

func loadPrompts(raw []byte) (*prompts, error) {
	var set promptSet
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	script, err := compilePair("script", set.Script)
	if err != nil {
		return nil, err
	}
	imagePrompts, err := compilePair("image_prompts", set.ImagePrompts)
	if err != nil {
		return nil, err
	}
	return &prompts{script: script, imagePrompts: imagePrompts}, nil
}

func compilePair(name string, pair promptPair) (compiledPair, error) {
	if strings.TrimSpace(pair.System) == "" || strings.TrimSpace(pair.User) == "" {
		return compiledPair{}, fmt.Errorf("prompt %s: system and user templates required", name)
	}
	system, err := template.New(name + ".system").Funcs(templateFuncs).Option("missingkey=error").Parse(pair.System)
	if err != nil {
		return compiledPair{}, fmt.Errorf("prompt %s: %w", name, err)
	}
	user, err := template.New(name + ".user").Funcs(templateFuncs).Option("missingkey=error").Parse(pair.User)
	if err != nil {
		return compiledPair{}, fmt.Errorf("prompt %s: %w", name, err)
	}
	return compiledPair{system: system, user: user}, nil
}

func (p compiledPair) render(data any) (string, string, error) {
	var system, user bytes.Buffer
	if err := p.system.Execute(&system, data); err != nil {
		return "", "", err
	}
	if err := p.user.Execute(&user, data); err != nil {
		return "", "", err
	}
	return system.String(), user.String(), nil
}
