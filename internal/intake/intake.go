// Package intake turns form-builder webhook submissions into pipeline
// requests.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bomstudio/internal/logging"
	"bomstudio/internal/services"
	"bomstudio/internal/services/scriptgen"
	"bomstudio/internal/store"
	"bomstudio/internal/workflow"
)

// FormResponse is the only event type that triggers generation.
const FormResponse = "FORM_RESPONSE"

const (
	defaultTone     = "friendly"
	defaultLanguage = "EN"
)

// Field is one labeled answer in a submission.
type Field struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type,omitempty"`
	Value any    `json:"value"`
}

// Submission is the Tally webhook body. Fields may arrive under data.fields
// or at the top level.
type Submission struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType" binding:"required"`
	CreatedAt string `json:"createdAt"`
	Data      struct {
		ResponseID string  `json:"responseId"`
		FormID     string  `json:"formId"`
		FormName   string  `json:"formName"`
		Fields     []Field `json:"fields"`
	} `json:"data"`
	Fields []Field `json:"fields"`
}

// AllFields returns the nested fields followed by any top-level ones.
func (s Submission) AllFields() []Field {
	out := make([]Field, 0, len(s.Data.Fields)+len(s.Fields))
	out = append(out, s.Data.Fields...)
	return append(out, s.Fields...)
}

// Response is the acknowledgment returned to the webhook caller.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	VideoID string `json:"video_id,omitempty"`
}

// MapFields matches field keys against the known brief attributes. Keys are
// lower-cased with spaces replaced by underscores; the first matching rule
// wins. The label is tried when the key matches nothing.
func MapFields(fields []Field) (scriptgen.Brief, string) {
	var (
		brief scriptgen.Brief
		email string
	)
	for _, field := range fields {
		value := stringValue(field.Value)
		if !assign(&brief, &email, normalizeKey(field.Key), value) {
			assign(&brief, &email, normalizeKey(field.Label), value)
		}
	}
	if strings.TrimSpace(brief.Tone) == "" {
		brief.Tone = defaultTone
	}
	if strings.TrimSpace(brief.Language) == "" {
		brief.Language = defaultLanguage
	}
	return brief, strings.TrimSpace(email)
}

func assign(brief *scriptgen.Brief, email *string, key, value string) bool {
	switch {
	case key == "":
		return false
	case strings.Contains(key, "email"):
		*email = value
	case strings.Contains(key, "business") && strings.Contains(key, "name"):
		brief.BusinessName = value
	case strings.Contains(key, "sell") || strings.Contains(key, "offer"):
		brief.WhatTheySell = value
	case strings.Contains(key, "customer") || strings.Contains(key, "audience"):
		brief.TargetCustomer = value
	case strings.Contains(key, "different") || strings.Contains(key, "unique"):
		brief.WhatMakesDifferent = value
	case strings.Contains(key, "tone"):
		brief.Tone = value
	case strings.Contains(key, "lang"):
		brief.Language = value
	case strings.Contains(key, "topic"):
		brief.Topic = value
	default:
		return false
	}
	return true
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), " ", "_")
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Enqueuer starts a pipeline run.
type Enqueuer interface {
	Enqueue(ctx context.Context, req workflow.Request) (workflow.Submission, error)
}

// Handler accepts submissions and queues generation.
type Handler struct {
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(enqueuer Enqueuer, logger *slog.Logger) *Handler {
	return &Handler{enqueuer: enqueuer, logger: logging.NewComponentLogger(logger, "intake")}
}

// Handle validates the submission and queues a pipeline run. It returns as
// soon as the run is queued.
func (h *Handler) Handle(ctx context.Context, sub Submission) (Response, error) {
	if sub.EventType != FormResponse {
		h.logger.Info("webhook event ignored",
			logging.String(logging.FieldEventType, "intake_ignored"),
			logging.String("webhook_event", sub.EventType),
		)
		return Response{Status: "ignored", Message: "Ignoring event type: " + sub.EventType}, nil
	}

	brief, email := MapFields(sub.AllFields())
	if email == "" {
		return Response{}, services.Wrap(services.ErrValidation, "intake", "map fields", "Email field required", nil)
	}
	if err := store.Validator().Var(email, "email"); err != nil {
		return Response{}, services.Wrap(services.ErrValidation, "intake", "map fields", "email must be a valid email address", nil)
	}

	queued, err := h.enqueuer.Enqueue(ctx, workflow.Request{Email: email, Brief: brief})
	if err != nil {
		return Response{}, err
	}
	logging.WithContext(ctx, h.logger).Info("video generation queued",
		logging.String(logging.FieldEventType, "intake_accepted"),
		logging.String(logging.FieldClientID, queued.ClientID),
		logging.String(logging.FieldVideoID, queued.VideoID),
		logging.String("submission_id", sub.EventID),
	)
	return Response{Status: "accepted", Message: "Video generation queued", VideoID: queued.VideoID}, nil
}
