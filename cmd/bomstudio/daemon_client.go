package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bomstudio/internal/config"
	"bomstudio/internal/store"
)

// daemonClient calls the running daemon's HTTP API.
type daemonClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newDaemonClient(cfg *config.Config) *daemonClient {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return &daemonClient{
		baseURL: "http://" + bind,
		token:   cfg.Paths.APIToken,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *daemonClient) retry(ctx context.Context, videoID string) (*store.Video, error) {
	endpoint := c.baseURL + "/api/v1/videos/" + url.PathEscape(videoID) + "/retry"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact daemon at %s: %w (is `bomstudio serve` running?)", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var body struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
			return nil, fmt.Errorf("retry %s: daemon returned %s", videoID, resp.Status)
		}
		return nil, fmt.Errorf("retry %s: %s (%s)", videoID, body.Error, body.Kind)
	}
	var v store.Video
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode retry response: %w", err)
	}
	return &v, nil
}
