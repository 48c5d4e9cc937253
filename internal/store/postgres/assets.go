package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bomstudio/internal/store"
)

// CreateAssets inserts all assets in one transaction.
func (s *Store) CreateAssets(ctx context.Context, assets []*store.Asset) error {
	now := time.Now().UTC()
	rows := make([]assetModel, 0, len(assets))
	for _, asset := range assets {
		if err := store.PrepareAsset(asset, now); err != nil {
			return err
		}
		metadata, err := jsonPtr(asset.Metadata)
		if err != nil {
			return store.Invalid("create asset", "metadata is not valid JSON", err)
		}
		rows = append(rows, assetModel{
			ID:        asset.ID,
			VideoID:   asset.VideoID,
			Type:      string(asset.Type),
			URL:       asset.URL,
			Metadata:  metadata,
			CreatedAt: asset.CreatedAt.UTC(),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Create(&rows[i]).Error
			if isForeignKeyViolation(err) {
				return missingParent("create asset", "video", rows[i].VideoID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return asStoreError("create assets", err)
}

// GetAsset fetches an asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (*store.Asset, error) {
	var row assetModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFound("asset", id)
		}
		return nil, store.Internal("get asset", err)
	}
	return row.toEntity(), nil
}

// ListAssets returns a video's assets in creation order.
func (s *Store) ListAssets(ctx context.Context, videoID string) ([]*store.Asset, error) {
	var rows []assetModel
	if err := s.db.WithContext(ctx).Where("video_id = ?", videoID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, store.Internal("list assets", err)
	}
	assets := make([]*store.Asset, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, row.toEntity())
	}
	return assets, nil
}
