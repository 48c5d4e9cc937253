package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bomstudio/internal/store"
)

const assetColumns = "id, video_id, type, url, metadata, created_at"

func scanAsset(row scanner) (*store.Asset, error) {
	var (
		asset      store.Asset
		assetType  string
		metadata   sql.NullString
		createdRaw sql.NullString
	)
	if err := row.Scan(&asset.ID, &asset.VideoID, &assetType, &asset.URL, &metadata, &createdRaw); err != nil {
		return nil, err
	}
	asset.Type = store.AssetType(assetType)
	asset.Metadata = rawJSON(metadata)
	asset.CreatedAt = parseTime(createdRaw)
	return &asset, nil
}

// CreateAssets inserts all assets in one transaction; either every asset is
// stored or none is.
func (s *Store) CreateAssets(ctx context.Context, assets []*store.Asset) error {
	now := time.Now().UTC()
	for _, asset := range assets {
		if err := store.PrepareAsset(asset, now); err != nil {
			return err
		}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, asset := range assets {
			metadata, err := store.MarshalNullableJSON(asset.Metadata)
			if err != nil {
				return store.Invalid("create asset", "metadata is not valid JSON", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO assets (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
				asset.ID, asset.VideoID, string(asset.Type), asset.URL, metadata, formatTime(asset.CreatedAt),
			)
			if isForeignKeyViolation(err) {
				return missingParent("create asset", "video", asset.VideoID)
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
	asset, err := scanAsset(s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("asset", id)
	}
	if err != nil {
		return nil, store.Internal("get asset", err)
	}
	return asset, nil
}

// ListAssets returns a video's assets in creation order.
func (s *Store) ListAssets(ctx context.Context, videoID string) ([]*store.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE video_id = ? ORDER BY created_at, rowid`, videoID)
	if err != nil {
		return nil, store.Internal("list assets", err)
	}
	defer rows.Close()

	var assets []*store.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, store.Internal("scan asset", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal("list assets", err)
	}
	return assets, nil
}
