// Package voice synthesizes voiceover audio through the ElevenLabs
// text-to-speech API.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"bomstudio/internal/services"
)

const (
	stageName             = "voice"
	defaultBaseURL        = "https://api.elevenlabs.io/v1"
	defaultModel          = "eleven_multilingual_v2"
	defaultRequestTimeout = 60 * time.Second
	maxAudioBytes         = 64 << 20
)

var languageAliases = map[string]string{
	"dutch":      "nl",
	"nederlands": "nl",
	"english":    "en",
}

// Config holds the ElevenLabs settings.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Stability       float64
	SimilarityBoost float64
	// DefaultVoice is used when no configured language matches.
	DefaultVoice string
	// Voices maps language codes (and free-form names such as "female") to
	// voice ids.
	Voices map[string]string
}

// Client talks to ElevenLabs.
type Client struct {
	cfg        Config
	httpClient *http.Client
	matcher    language.Matcher
	matchIDs   []string
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New builds a Client and indexes the configured per-language voices.
func New(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	c := &Client{cfg: cfg, httpClient: &http.Client{Timeout: defaultRequestTimeout}}

	keys := make([]string, 0, len(cfg.Voices))
	for key := range cfg.Voices {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var tags []language.Tag
	for _, key := range keys {
		if len(key) < 2 || len(key) > 3 {
			continue
		}
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		c.matchIDs = append(c.matchIDs, cfg.Voices[key])
	}
	if len(tags) > 0 {
		c.matcher = language.NewMatcher(tags)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectVoice resolves the voice id for a request. An explicit value naming a
// configured voice (or a raw voice id) wins; otherwise the language picks the
// closest configured voice, falling back to the default voice.
func (c *Client) SelectVoice(lang, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if id, ok := c.cfg.Voices[strings.ToLower(explicit)]; ok {
			return id
		}
		return explicit
	}
	code := strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[code]; ok {
		code = alias
	}
	if c.matcher != nil && code != "" {
		if tag, err := language.Parse(code); err == nil {
			_, index, confidence := c.matcher.Match(tag)
			if confidence != language.No {
				return c.matchIDs[index]
			}
		}
	}
	if c.cfg.DefaultVoice != "" {
		return c.cfg.DefaultVoice
	}
	if len(c.matchIDs) > 0 {
		return c.matchIDs[0]
	}
	return ""
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize converts text to MP3 audio using the voice chosen for lang.
func (c *Client) Synthesize(ctx context.Context, text, lang, explicitVoice string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "elevenlabs api key not configured", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "synthesize", "voiceover text is empty", nil)
	}
	voiceID := c.SelectVoice(lang, explicitVoice)
	if voiceID == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "synthesize", "no voice configured", nil)
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: c.cfg.Model,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, stageName, "synthesize", "encode request", err)
	}
	endpoint := c.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, stageName, "synthesize", "build request", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, stageName, "synthesize", "", err)
		}
		return nil, services.Wrap(services.ErrGeneration, stageName, "synthesize", "", err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrGeneration, stageName, "synthesize", "read audio", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrGeneration, stageName, "synthesize",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(audio))), nil)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrGeneration, stageName, "synthesize", "empty audio response", nil)
	}
	return audio, nil
}
