package store

import (
	"encoding/json"
	"strings"
)

// Scene is one beat of a script: the spoken line and a visual description.
type Scene struct {
	Text   string `json:"text"`
	Visual string `json:"visual,omitempty"`
}

// Script is the structured document produced by script generation.
type Script struct {
	Hook   string  `json:"hook"`
	Scenes []Scene `json:"scenes"`
	CTA    string  `json:"cta"`
}

// IsEmpty reports whether the script carries no spoken content.
func (s *Script) IsEmpty() bool {
	return s == nil || strings.TrimSpace(s.VoiceoverText()) == ""
}

// VoiceoverText joins hook, scene texts, and call to action with single
// spaces, skipping empty parts.
func (s *Script) VoiceoverText() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, len(s.Scenes)+2)
	parts = append(parts, s.Hook)
	for _, scene := range s.Scenes {
		parts = append(parts, scene.Text)
	}
	parts = append(parts, s.CTA)

	kept := parts[:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}

// Formats maps an output format name (vertical, square, horizontal) to the
// location of the rendered file.
type Formats map[string]string

// Primary returns the first format location in a stable preference order.
func (f Formats) Primary() (string, string, bool) {
	for _, name := range []string{"vertical", "square", "horizontal"} {
		if url, ok := f[name]; ok && url != "" {
			return name, url, true
		}
	}
	for name, url := range f {
		if url != "" {
			return name, url, true
		}
	}
	return "", "", false
}

// MarshalNullableJSON encodes v, returning nil for empty documents so the
// column stays NULL.
func MarshalNullableJSON(v any) (any, error) {
	switch typed := v.(type) {
	case *Script:
		if typed == nil {
			return nil, nil
		}
	case Formats:
		if len(typed) == 0 {
			return nil, nil
		}
	case json.RawMessage:
		if len(typed) == 0 || string(typed) == "null" {
			return nil, nil
		}
		return string(typed), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}
