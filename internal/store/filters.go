package store

import (
	"encoding/json"
	"time"
)

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Page bounds a list query with skip/limit semantics.
type Page struct {
	Offset int
	Limit  int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// ClientFilter narrows FindClients.
type ClientFilter struct {
	Package Package
	Page
}

// ProjectFilter narrows FindProjects. ClientID is the ownership predicate.
type ProjectFilter struct {
	ClientID string
	Status   ProjectStatus
	Page
}

// VideoFilter narrows FindVideos. ClientID joins through the owning project.
type VideoFilter struct {
	ProjectID string
	ClientID  string
	Status    VideoStatus
	Page
}

// UsageFilter narrows ListUsage and SumUsage.
type UsageFilter struct {
	ProjectID string
	Provider  string
	Since     time.Time
	Page
}

// ClientPatch carries partial client updates; nil fields are left unchanged.
type ClientPatch struct {
	Name     *string         `json:"name" validate:"omitempty,min=1,max=255"`
	Email    *string         `json:"email" validate:"omitempty,email"`
	Package  *Package        `json:"package" validate:"omitempty,oneof=kickstart growth pro"`
	BrandKit json.RawMessage `json:"brand_kit"`
}

// Apply mutates client with the non-nil patch fields.
func (p ClientPatch) Apply(client *Client) {
	if p.Name != nil {
		client.Name = *p.Name
	}
	if p.Email != nil {
		client.Email = NormalizeEmail(*p.Email)
	}
	if p.Package != nil {
		client.Package = *p.Package
	}
	if len(p.BrandKit) > 0 {
		client.BrandKit = p.BrandKit
	}
}

// ProjectPatch carries partial project updates.
type ProjectPatch struct {
	Name   *string        `json:"name" validate:"omitempty,min=1,max=255"`
	Status *ProjectStatus `json:"status" validate:"omitempty,oneof=draft in_progress review approved delivered"`
}

// Apply mutates project with the non-nil patch fields.
func (p ProjectPatch) Apply(project *Project) {
	if p.Name != nil {
		project.Name = *p.Name
	}
	if p.Status != nil {
		project.Status = *p.Status
	}
}

// VideoPatch carries partial video updates outside the state machine. Status
// is absent; transitions go through the video package.
type VideoPatch struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Script    *Script `json:"script"`
	Formats   Formats `json:"formats"`
	CostCents *int    `json:"cost_cents" validate:"omitempty,min=0"`
}

// Apply mutates video with the non-nil patch fields. Cost only ever grows.
func (p VideoPatch) Apply(video *Video) {
	if p.Title != nil {
		video.Title = *p.Title
	}
	if p.Script != nil {
		video.Script = p.Script
	}
	if p.Formats != nil {
		video.Formats = p.Formats
	}
	if p.CostCents != nil && *p.CostCents > video.CostCents {
		video.CostCents = *p.CostCents
	}
}
