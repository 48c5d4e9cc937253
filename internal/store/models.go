package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Package is the commercial tier a client is subscribed to.
type Package string

const (
	PackageKickstart Package = "kickstart"
	PackageGrowth    Package = "growth"
	PackagePro       Package = "pro"
)

// ProjectStatus is an informational aggregate of a project's videos.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectReview     ProjectStatus = "review"
	ProjectApproved   ProjectStatus = "approved"
	ProjectDelivered  ProjectStatus = "delivered"
)

// VideoStatus is the state-machine-controlled lifecycle of a video.
type VideoStatus string

const (
	VideoScripting  VideoStatus = "scripting"
	VideoGenerating VideoStatus = "generating"
	VideoRendering  VideoStatus = "rendering"
	VideoDraft      VideoStatus = "draft"
	VideoReview     VideoStatus = "review"
	VideoApproved   VideoStatus = "approved"
	VideoDelivered  VideoStatus = "delivered"
)

var allVideoStatuses = []VideoStatus{
	VideoScripting,
	VideoGenerating,
	VideoRendering,
	VideoDraft,
	VideoReview,
	VideoApproved,
	VideoDelivered,
}

// AllVideoStatuses returns the ordered list of known video statuses.
func AllVideoStatuses() []VideoStatus {
	out := make([]VideoStatus, len(allVideoStatuses))
	copy(out, allVideoStatuses)
	return out
}

// ParseVideoStatus normalizes a user-supplied status string.
func ParseVideoStatus(value string) (VideoStatus, bool) {
	normalized := VideoStatus(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allVideoStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsGenerating reports whether the pipeline owns the video in this status.
func (s VideoStatus) IsGenerating() bool {
	return s == VideoGenerating || s == VideoRendering
}

// AssetType classifies a generated or uploaded asset.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetAudio AssetType = "audio"
	AssetMusic AssetType = "music"
	AssetClip  AssetType = "clip"
)

// Client is a paying customer. Email is unique and stored lower-cased.
type Client struct {
	ID        string          `json:"id"`
	Name      string          `json:"name" validate:"required,max=255"`
	Email     string          `json:"email" validate:"required,email"`
	Package   Package         `json:"package" validate:"oneof=kickstart growth pro"`
	BrandKit  json.RawMessage `json:"brand_kit"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Project groups the videos produced for one client request.
type Project struct {
	ID        string        `json:"id"`
	ClientID  string        `json:"client_id" validate:"required"`
	Name      string        `json:"name" validate:"required,max=255"`
	Status    ProjectStatus `json:"status" validate:"oneof=draft in_progress review approved delivered"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Video is a single short-form video moving through the generation pipeline.
type Video struct {
	ID              string      `json:"id"`
	ProjectID       string      `json:"project_id" validate:"required"`
	Title           string      `json:"title" validate:"required,max=255"`
	Script          *Script     `json:"script"`
	Status          VideoStatus `json:"status"`
	Formats         Formats     `json:"formats"`
	CostCents       int         `json:"cost_cents" validate:"min=0"`
	ApprovalNote    *string     `json:"approval_note"`
	ApprovedAt      *time.Time  `json:"approved_at"`
	DeliveryURL     *string     `json:"delivery_url"`
	DeliveredAt     *time.Time  `json:"delivered_at"`
	PipelineRunning bool        `json:"pipeline_running"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Asset is an immutable artifact attached to a video.
type Asset struct {
	ID        string          `json:"id"`
	VideoID   string          `json:"video_id" validate:"required"`
	Type      AssetType       `json:"type" validate:"oneof=image audio music clip"`
	URL       string          `json:"url" validate:"required"`
	Metadata  json.RawMessage `json:"meta"`
	CreatedAt time.Time       `json:"created_at"`
}

// UsageRecord is one append-only ledger entry for a billable external call.
type UsageRecord struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider" validate:"required"`
	Action    string    `json:"action" validate:"required"`
	ProjectID string    `json:"project_id,omitempty"`
	CostCents int       `json:"cost_cents" validate:"min=0"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// StringPtr returns a pointer to value, or nil when value is blank.
func StringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
