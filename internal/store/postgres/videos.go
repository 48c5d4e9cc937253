package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

// CreateVideo inserts a video in the scripting state.
func (s *Store) CreateVideo(ctx context.Context, video *store.Video) error {
	if err := store.PrepareVideo(video, time.Now().UTC()); err != nil {
		return err
	}
	row, err := videoModelFromEntity(video)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	switch {
	case err == nil:
		return nil
	case isForeignKeyViolation(err):
		return missingParent("create video", "project", video.ProjectID)
	default:
		return store.Internal("create video", err)
	}
}

// GetVideo fetches a video by id.
func (s *Store) GetVideo(ctx context.Context, id string) (*store.Video, error) {
	return getVideo(s.db.WithContext(ctx).Where("id = ?", id), id)
}

// GetVideoForClient fetches a video only when its project belongs to clientID.
func (s *Store) GetVideoForClient(ctx context.Context, id, clientID string) (*store.Video, error) {
	tx := s.db.WithContext(ctx).
		Joins("JOIN projects ON projects.id = videos.project_id").
		Where("videos.id = ? AND projects.client_id = ?", id, clientID)
	return getVideo(tx, id)
}

func getVideo(tx *gorm.DB, id string) (*store.Video, error) {
	var row videoModel
	if err := tx.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFound("video", id)
		}
		return nil, store.Internal("get video", err)
	}
	video, err := row.toEntity()
	if err != nil {
		return nil, store.Internal("get video", err)
	}
	return video, nil
}

// FindVideos lists videos matching filter, newest first.
func (s *Store) FindVideos(ctx context.Context, filter store.VideoFilter) ([]*store.Video, error) {
	tx := s.db.WithContext(ctx).Model(&videoModel{})
	if filter.ClientID != "" {
		tx = tx.Joins("JOIN projects ON projects.id = videos.project_id AND projects.client_id = ?", filter.ClientID)
	}
	if filter.ProjectID != "" {
		tx = tx.Where("videos.project_id = ?", filter.ProjectID)
	}
	if filter.Status != "" {
		tx = tx.Where("videos.status = ?", string(filter.Status))
	}
	var rows []videoModel
	if err := paginate(tx.Order("videos.created_at DESC, videos.id"), filter.Page).Find(&rows).Error; err != nil {
		return nil, store.Internal("find videos", err)
	}
	videos := make([]*store.Video, 0, len(rows))
	for _, row := range rows {
		video, err := row.toEntity()
		if err != nil {
			return nil, store.Internal("scan video", err)
		}
		videos = append(videos, video)
	}
	return videos, nil
}

// UpdateVideo applies a partial, non-status update.
func (s *Store) UpdateVideo(ctx context.Context, id string, patch store.VideoPatch) (*store.Video, error) {
	if err := store.ValidateStruct("update video", patch); err != nil {
		return nil, err
	}
	var updated *store.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		video, err := getVideo(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id), id)
		if err != nil {
			return err
		}
		if video.PipelineRunning {
			return store.Conflict("update video", "pipeline running for video "+id, nil)
		}
		patch.Apply(video)
		if err := saveVideo(tx, video, video.Status); err != nil {
			return err
		}
		updated = video
		return nil
	})
	if err != nil {
		return nil, asStoreError("update video", err)
	}
	return updated, nil
}

// SaveVideo persists every mutable column while the stored status is still
// from. cost_cents never decreases.
func (s *Store) SaveVideo(ctx context.Context, video *store.Video, from store.VideoStatus) error {
	if video == nil {
		return store.Invalid("save video", "video is nil", nil)
	}
	if video.CostCents < 0 {
		return store.Invalid("save video", "cost_cents must not be negative", nil)
	}
	return asStoreError("save video", saveVideo(s.db.WithContext(ctx), video, from))
}

func saveVideo(tx *gorm.DB, video *store.Video, from store.VideoStatus) error {
	updatedAt := time.Now().UTC()
	row, err := videoModelFromEntity(video)
	if err != nil {
		return err
	}
	result := tx.Model(&videoModel{}).Where("id = ? AND status = ?", video.ID, string(from)).Updates(map[string]any{
		"title":            row.Title,
		"script_json":      row.ScriptJSON,
		"status":           row.Status,
		"formats_json":     row.FormatsJSON,
		"cost_cents":       gorm.Expr("GREATEST(cost_cents, ?)", row.CostCents),
		"approval_note":    row.ApprovalNote,
		"approved_at":      row.ApprovedAt,
		"delivery_url":     row.DeliveryURL,
		"delivered_at":     row.DeliveredAt,
		"pipeline_running": row.PipelineRunning,
		"updated_at":       updatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var current videoModel
		if err := tx.Select("status").Where("id = ?", video.ID).Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.NotFound("video", video.ID)
			}
			return err
		}
		return store.Conflict("save video",
			fmt.Sprintf("video %s changed concurrently: expected %s, found %s", video.ID, from, current.Status), nil)
	}
	video.UpdatedAt = updatedAt
	return nil
}

// DeleteVideo removes a video and its assets.
func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &videoModel{}, "video", id)
}

// ClaimPipeline sets the in-flight guard when the video is idle in scripting.
func (s *Store) ClaimPipeline(ctx context.Context, id string) (*store.Video, error) {
	var claimed *store.Video
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&videoModel{}).
			Where("id = ? AND pipeline_running = FALSE AND status = ?", id, string(store.VideoScripting)).
			Updates(map[string]any{"pipeline_running": true, "updated_at": time.Now().UTC()})
		if result.Error != nil {
			return result.Error
		}
		video, err := getVideo(tx.Where("id = ?", id), id)
		if err != nil {
			return err
		}
		if result.RowsAffected == 0 {
			if video.PipelineRunning {
				return store.Conflict("claim pipeline", "pipeline already running for video "+id, nil)
			}
			return services.Wrap(services.ErrInvalidTransition, "store", "claim pipeline",
				fmt.Sprintf("video %s is %s, pipeline requires %s", id, video.Status, store.VideoScripting), nil)
		}
		claimed = video
		return nil
	})
	if err != nil {
		return nil, asStoreError("claim pipeline", err)
	}
	return claimed, nil
}

// ReleasePipeline clears the in-flight guard.
func (s *Store) ReleasePipeline(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&videoModel{}).Where("id = ?", id).
		Updates(map[string]any{"pipeline_running": false, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return store.Internal("release pipeline", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.NotFound("video", id)
	}
	return nil
}

// ResetStalePipelines clears guards and rolls generating/rendering videos back
// to scripting with note recorded as the approval note.
func (s *Store) ResetStalePipelines(ctx context.Context, note string) (int64, error) {
	interrupted := []string{string(store.VideoGenerating), string(store.VideoRendering)}
	result := s.db.WithContext(ctx).Model(&videoModel{}).
		Where("pipeline_running = TRUE OR status IN ?", interrupted).
		Updates(map[string]any{
			"status":           gorm.Expr("CASE WHEN status IN ? THEN ? ELSE status END", interrupted, string(store.VideoScripting)),
			"approval_note":    gorm.Expr("CASE WHEN status IN ? THEN ? ELSE approval_note END", interrupted, store.StringPtr(note)),
			"pipeline_running": false,
			"updated_at":       time.Now().UTC(),
		})
	if result.Error != nil {
		return 0, store.Internal("reset stale pipelines", result.Error)
	}
	return result.RowsAffected, nil
}
