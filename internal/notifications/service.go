package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bomstudio/internal/config"
)

const userAgent = "bomstudio/0.1.0"

// Event names a notification type.
type Event string

const (
	EventDraftReady      Event = "draft_ready"
	EventReviewRequested Event = "review_requested"
	EventVideoApproved   Event = "video_approved"
	EventVideoDelivered  Event = "video_delivered"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields such as "title", "client", "stage", "error".
type Payload map[string]string

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventDraftReady:      cfg.Notifications.DraftReady,
			EventReviewRequested: cfg.Notifications.Review,
			EventVideoApproved:   cfg.Notifications.Review,
			EventVideoDelivered:  cfg.Notifications.Review,
			EventError:           cfg.Notifications.Errors,
			EventTest:            true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	title := strings.TrimSpace(payload["title"])
	if title == "" {
		title = "Untitled video"
	}
	client := strings.TrimSpace(payload["client"])
	forClient := ""
	if client != "" {
		forClient = " for " + client
	}

	switch event {
	case EventDraftReady:
		return message{
			title: "Studio - Draft Ready",
			body:  fmt.Sprintf("🎬 Draft ready%s: %s", forClient, title),
			tags:  []string{"studio", "draft", "ready"},
		}, true
	case EventReviewRequested:
		return message{
			title: "Studio - Review Requested",
			body:  fmt.Sprintf("👀 Awaiting approval%s: %s", forClient, title),
			tags:  []string{"studio", "review"},
		}, true
	case EventVideoApproved:
		body := fmt.Sprintf("✅ Approved: %s", title)
		if note := strings.TrimSpace(payload["note"]); note != "" {
			body += "\nNote: " + note
		}
		return message{
			title: "Studio - Approved",
			body:  body,
			tags:  []string{"studio", "review", "approved"},
		}, true
	case EventVideoDelivered:
		body := fmt.Sprintf("📦 Delivered%s: %s", forClient, title)
		if link := strings.TrimSpace(payload["url"]); link != "" {
			body += "\n" + link
		}
		return message{
			title:    "Studio - Delivered",
			body:     body,
			tags:     []string{"studio", "delivered"},
			priority: "high",
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ ")
		if stage := strings.TrimSpace(payload["stage"]); stage != "" {
			b.WriteString(cases.Title(language.English).String(stage))
			b.WriteString(" failed")
		} else {
			b.WriteString("Pipeline failed")
		}
		fmt.Fprintf(&b, " for %s: ", title)
		if errText := strings.TrimSpace(payload["error"]); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Studio - Error",
			body:     b.String(),
			tags:     []string{"studio", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Studio - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"studio", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
