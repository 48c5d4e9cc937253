package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"bomstudio/internal/store"
)

type clientModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	Email     string    `gorm:"column:email"`
	Package   string    `gorm:"column:package"`
	BrandKit  *string   `gorm:"column:brand_kit"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (clientModel) TableName() string { return "clients" }

func clientModelFromEntity(client *store.Client) clientModel {
	return clientModel{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		Package:   string(client.Package),
		BrandKit:  rawPtr(client.BrandKit),
		CreatedAt: client.CreatedAt.UTC(),
		UpdatedAt: client.UpdatedAt.UTC(),
	}
}

func (m clientModel) toEntity() *store.Client {
	return &store.Client{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Package:   store.Package(m.Package),
		BrandKit:  ptrRaw(m.BrandKit),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type projectModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	ClientID  string    `gorm:"column:client_id"`
	Name      string    `gorm:"column:name"`
	Status    string    `gorm:"column:status"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (projectModel) TableName() string { return "projects" }

func projectModelFromEntity(project *store.Project) projectModel {
	return projectModel{
		ID:        project.ID,
		ClientID:  project.ClientID,
		Name:      project.Name,
		Status:    string(project.Status),
		CreatedAt: project.CreatedAt.UTC(),
		UpdatedAt: project.UpdatedAt.UTC(),
	}
}

func (m projectModel) toEntity() *store.Project {
	return &store.Project{
		ID:        m.ID,
		ClientID:  m.ClientID,
		Name:      m.Name,
		Status:    store.ProjectStatus(m.Status),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type videoModel struct {
	ID              string     `gorm:"column:id;primaryKey"`
	ProjectID       string     `gorm:"column:project_id"`
	Title           string     `gorm:"column:title"`
	ScriptJSON      *string    `gorm:"column:script_json"`
	Status          string     `gorm:"column:status"`
	FormatsJSON     *string    `gorm:"column:formats_json"`
	CostCents       int        `gorm:"column:cost_cents"`
	ApprovalNote    *string    `gorm:"column:approval_note"`
	ApprovedAt      *time.Time `gorm:"column:approved_at"`
	DeliveryURL     *string    `gorm:"column:delivery_url"`
	DeliveredAt     *time.Time `gorm:"column:delivered_at"`
	PipelineRunning bool       `gorm:"column:pipeline_running"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

func (videoModel) TableName() string { return "videos" }

func videoModelFromEntity(video *store.Video) (videoModel, error) {
	script, err := jsonPtr(video.Script)
	if err != nil {
		return videoModel{}, store.Invalid("encode video", "script is not serializable", err)
	}
	formats, err := jsonPtr(video.Formats)
	if err != nil {
		return videoModel{}, store.Invalid("encode video", "formats are not serializable", err)
	}
	return videoModel{
		ID:              video.ID,
		ProjectID:       video.ProjectID,
		Title:           video.Title,
		ScriptJSON:      script,
		Status:          string(video.Status),
		FormatsJSON:     formats,
		CostCents:       video.CostCents,
		ApprovalNote:    video.ApprovalNote,
		ApprovedAt:      video.ApprovedAt,
		DeliveryURL:     video.DeliveryURL,
		DeliveredAt:     video.DeliveredAt,
		PipelineRunning: video.PipelineRunning,
		CreatedAt:       video.CreatedAt.UTC(),
		UpdatedAt:       video.UpdatedAt.UTC(),
	}, nil
}

func (m videoModel) toEntity() (*store.Video, error) {
	video := &store.Video{
		ID:              m.ID,
		ProjectID:       m.ProjectID,
		Title:           m.Title,
		Status:          store.VideoStatus(m.Status),
		CostCents:       m.CostCents,
		ApprovalNote:    m.ApprovalNote,
		ApprovedAt:      m.ApprovedAt,
		DeliveryURL:     m.DeliveryURL,
		DeliveredAt:     m.DeliveredAt,
		PipelineRunning: m.PipelineRunning,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
	if m.ScriptJSON != nil && *m.ScriptJSON != "" {
		var script store.Script
		if err := json.Unmarshal([]byte(*m.ScriptJSON), &script); err != nil {
			return nil, fmt.Errorf("decode script for video %s: %w", m.ID, err)
		}
		video.Script = &script
	}
	if m.FormatsJSON != nil && *m.FormatsJSON != "" {
		if err := json.Unmarshal([]byte(*m.FormatsJSON), &video.Formats); err != nil {
			return nil, fmt.Errorf("decode formats for video %s: %w", m.ID, err)
		}
	}
	return video, nil
}

type assetModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	VideoID   string    `gorm:"column:video_id"`
	Type      string    `gorm:"column:type"`
	URL       string    `gorm:"column:url"`
	Metadata  *string   `gorm:"column:metadata"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (assetModel) TableName() string { return "assets" }

func (m assetModel) toEntity() *store.Asset {
	return &store.Asset{
		ID:        m.ID,
		VideoID:   m.VideoID,
		Type:      store.AssetType(m.Type),
		URL:       m.URL,
		Metadata:  ptrRaw(m.Metadata),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type usageModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Provider  string    `gorm:"column:provider"`
	Action    string    `gorm:"column:action"`
	ProjectID *string   `gorm:"column:project_id"`
	CostCents int       `gorm:"column:cost_cents"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (usageModel) TableName() string { return "api_usage" }

func (m usageModel) toEntity() *store.UsageRecord {
	record := &store.UsageRecord{
		ID:        m.ID,
		Provider:  m.Provider,
		Action:    m.Action,
		CostCents: m.CostCents,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.ProjectID != nil {
		record.ProjectID = *m.ProjectID
	}
	return record
}

func rawPtr(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	value := string(raw)
	return &value
}

func ptrRaw(value *string) json.RawMessage {
	if value == nil || *value == "" {
		return nil
	}
	return json.RawMessage(*value)
}

func jsonPtr(value any) (*string, error) {
	encoded, err := store.MarshalNullableJSON(value)
	if err != nil || encoded == nil {
		return nil, err
	}
	text, ok := encoded.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected encoded type %T", encoded)
	}
	return &text, nil
}
