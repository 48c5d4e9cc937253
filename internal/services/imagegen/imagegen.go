// Package imagegen generates scene images through the Replicate predictions
// API, polling each prediction until it settles.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bomstudio/internal/services"
)

const (
	stageName             = "images"
	defaultBaseURL        = "https://api.replicate.com/v1"
	defaultModel          = "black-forest-labs/flux-schnell"
	defaultAspectRatio    = "9:16"
	defaultPollAttempts   = 60
	defaultPollInterval   = time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Config holds the Replicate connection and polling settings.
type Config struct {
	APIToken     string
	BaseURL      string
	Model        string
	AspectRatio  string
	PollAttempts int
	PollInterval time.Duration
	// Concurrency caps in-flight predictions in GenerateAll; zero means one
	// per prompt.
	Concurrency int
}

// Client talks to Replicate.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
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

// New builds a Client, filling defaults for unset fields.
func New(cfg Config, opts ...Option) *Client {
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = defaultAspectRatio
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt       string `json:"prompt"`
	AspectRatio  string `json:"aspect_ratio"`
	NumOutputs   int    `json:"num_outputs"`
	OutputFormat string `json:"output_format"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// firstOutput accepts both a list of URLs and a single URL.
func (p prediction) firstOutput() string {
	var list []string
	if err := json.Unmarshal(p.Output, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single
	}
	return ""
}

// Generate creates one image for prompt and returns its URL. Polling stops
// after the configured number of attempts with services.ErrTimeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIToken == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "generate image", "replicate api token not configured", nil)
	}
	body, err := json.Marshal(predictionRequest{
		Version: c.cfg.Model,
		Input: predictionInput{
			Prompt:       prompt,
			AspectRatio:  c.cfg.AspectRatio,
			NumOutputs:   1,
			OutputFormat: "png",
		},
	})
	if err != nil {
		return "", services.Wrap(services.ErrInternal, stageName, "generate image", "encode request", err)
	}

	var started prediction
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/predictions", body, &started); err != nil {
		return "", err
	}
	if url, done, err := settle(started); done {
		return url, err
	}
	if started.URLs.Get == "" {
		return "", services.Wrap(services.ErrGeneration, stageName, "generate image", "prediction has no polling url", nil)
	}

	for attempt := 0; attempt < c.cfg.PollAttempts; attempt++ {
		var current prediction
		if err := c.do(ctx, http.MethodGet, started.URLs.Get, nil, &current); err != nil {
			return "", err
		}
		if url, done, err := settle(current); done {
			return url, err
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return "", services.Wrap(services.ErrTimeout, stageName, "poll prediction", "cancelled while waiting", err)
		}
	}
	return "", services.Wrap(services.ErrTimeout, stageName, "poll prediction",
		fmt.Sprintf("prediction %s not finished after %d attempts", started.ID, c.cfg.PollAttempts), nil)
}

func settle(p prediction) (string, bool, error) {
	switch p.Status {
	case "succeeded":
		url := p.firstOutput()
		if url == "" {
			return "", true, services.Wrap(services.ErrGeneration, stageName, "generate image", "prediction succeeded without output", nil)
		}
		return url, true, nil
	case "failed", "canceled":
		return "", true, services.Wrap(services.ErrGeneration, stageName, "generate image",
			fmt.Sprintf("prediction %s %s: %v", p.ID, p.Status, p.Error), nil)
	default:
		return "", false, nil
	}
}

// GenerateAll generates one image per prompt concurrently and returns URLs in
// prompt order. Any failure cancels the rest and fails the whole batch.
func (c *Client) GenerateAll(ctx context.Context, prompts []string) ([]string, error) {
	if len(prompts) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "generate images", "no prompts", nil)
	}
	urls := make([]string, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	if c.cfg.Concurrency > 0 {
		g.SetLimit(c.cfg.Concurrency)
	}
	for i, prompt := range prompts {
		g.Go(func() error {
			url, err := c.Generate(gctx, prompt)
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			urls[i] = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, target any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return services.Wrap(services.ErrInternal, stageName, "build request", "", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrTimeout, stageName, "replicate request", "", err)
		}
		return services.Wrap(services.ErrGeneration, stageName, "replicate request", "", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return services.Wrap(services.ErrGeneration, stageName, "replicate request", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return services.Wrap(services.ErrGeneration, stageName, "replicate request",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return services.Wrap(services.ErrGeneration, stageName, "replicate request", "decode response", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
