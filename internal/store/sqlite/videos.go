package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

const videoColumns = "id, project_id, title, script_json, status, formats_json, cost_cents, approval_note, approved_at, delivery_url, delivered_at, pipeline_running, created_at, updated_at"

func scanVideo(row scanner) (*store.Video, error) {
	var (
		video                   store.Video
		status                  string
		scriptJSON, formatsJSON sql.NullString
		approvalNote            sql.NullString
		approvedAt, deliveredAt sql.NullString
		deliveryURL             sql.NullString
		running                 int
		createdRaw, updatedRaw  sql.NullString
	)
	if err := row.Scan(
		&video.ID,
		&video.ProjectID,
		&video.Title,
		&scriptJSON,
		&status,
		&formatsJSON,
		&video.CostCents,
		&approvalNote,
		&approvedAt,
		&deliveryURL,
		&deliveredAt,
		&running,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	video.Status = store.VideoStatus(status)
	if scriptJSON.Valid && scriptJSON.String != "" {
		var script store.Script
		if err := json.Unmarshal([]byte(scriptJSON.String), &script); err != nil {
			return nil, fmt.Errorf("decode script for video %s: %w", video.ID, err)
		}
		video.Script = &script
	}
	if formatsJSON.Valid && formatsJSON.String != "" {
		if err := json.Unmarshal([]byte(formatsJSON.String), &video.Formats); err != nil {
			return nil, fmt.Errorf("decode formats for video %s: %w", video.ID, err)
		}
	}
	video.ApprovalNote = stringPtr(approvalNote)
	video.ApprovedAt = parseTimePtr(approvedAt)
	video.DeliveryURL = stringPtr(deliveryURL)
	video.DeliveredAt = parseTimePtr(deliveredAt)
	video.PipelineRunning = running != 0
	video.CreatedAt = parseTime(createdRaw)
	video.UpdatedAt = parseTime(updatedRaw)
	return &video, nil
}

func videoDocuments(video *store.Video) (script, formats any, err error) {
	if script, err = store.MarshalNullableJSON(video.Script); err != nil {
		return nil, nil, store.Invalid("encode video", "script is not serializable", err)
	}
	if formats, err = store.MarshalNullableJSON(video.Formats); err != nil {
		return nil, nil, store.Invalid("encode video", "formats are not serializable", err)
	}
	return script, formats, nil
}

// CreateVideo inserts a video in the scripting state. A missing project fails
// with ErrValidation (the error also matches ErrNotFound).
func (s *Store) CreateVideo(ctx context.Context, video *store.Video) error {
	if err := store.PrepareVideo(video, time.Now().UTC()); err != nil {
		return err
	}
	script, formats, err := videoDocuments(video)
	if err != nil {
		return err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM projects WHERE id = ?`, video.ProjectID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return missingParent("create video", "project", video.ProjectID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			video.ID, video.ProjectID, video.Title, script, string(video.Status), formats,
			video.CostCents, nullableStringPtr(video.ApprovalNote), nullableTime(video.ApprovedAt),
			nullableStringPtr(video.DeliveryURL), nullableTime(video.DeliveredAt), boolToInt(video.PipelineRunning),
			formatTime(video.CreatedAt), formatTime(video.UpdatedAt),
		)
		if isForeignKeyViolation(err) {
			return missingParent("create video", "project", video.ProjectID)
		}
		return err
	})
	return asStoreError("create video", err)
}

// GetVideo fetches a video by id.
func (s *Store) GetVideo(ctx context.Context, id string) (*store.Video, error) {
	return s.getVideo(ctx, s.db, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
}

// GetVideoForClient fetches a video only when its project belongs to clientID.
func (s *Store) GetVideoForClient(ctx context.Context, id, clientID string) (*store.Video, error) {
	return s.getVideo(ctx, s.db,
		`SELECT `+qualify("v", videoColumns)+` FROM videos v
         JOIN projects p ON p.id = v.project_id
         WHERE v.id = ? AND p.client_id = ?`,
		id, clientID,
	)
}

func (s *Store) getVideo(ctx context.Context, q querier, query string, args ...any) (*store.Video, error) {
	video, err := scanVideo(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("video", args[0].(string))
	}
	if err != nil {
		return nil, store.Internal("get video", err)
	}
	return video, nil
}

// FindVideos lists videos matching filter, newest first.
func (s *Store) FindVideos(ctx context.Context, filter store.VideoFilter) ([]*store.Video, error) {
	query := `SELECT ` + qualify("v", videoColumns) + ` FROM videos v`
	var args []any
	if filter.ClientID != "" {
		query += ` JOIN projects p ON p.id = v.project_id AND p.client_id = ?`
		args = append(args, filter.ClientID)
	}
	query += ` WHERE 1 = 1`
	if filter.ProjectID != "" {
		query += ` AND v.project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += ` AND v.status = ?`
		args = append(args, string(filter.Status))
	}
	limit, limitArgs := pageClause(filter.Page)
	query += ` ORDER BY v.created_at DESC, v.id` + limit
	args = append(args, limitArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Internal("find videos", err)
	}
	defer rows.Close()

	var videos []*store.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, store.Internal("scan video", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal("find videos", err)
	}
	return videos, nil
}

// UpdateVideo applies a partial, non-status update inside a transaction.
func (s *Store) UpdateVideo(ctx context.Context, id string, patch store.VideoPatch) (*store.Video, error) {
	if err := store.ValidateStruct("update video", patch); err != nil {
		return nil, err
	}
	var updated *store.Video
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		video, err := s.getVideo(ctx, tx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if video.PipelineRunning {
			return store.Conflict("update video", "pipeline running for video "+id, nil)
		}
		patch.Apply(video)
		if err := saveVideo(ctx, tx, video, video.Status); err != nil {
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
	err := retryOnBusy(ctx, func() error {
		return saveVideo(ctx, s.db, video, from)
	})
	return asStoreError("save video", err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func saveVideo(ctx context.Context, db execer, video *store.Video, from store.VideoStatus) error {
	script, formats, err := videoDocuments(video)
	if err != nil {
		return err
	}
	updatedAt := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`UPDATE videos
         SET title = ?, script_json = ?, status = ?, formats_json = ?,
             cost_cents = MAX(cost_cents, ?), approval_note = ?, approved_at = ?,
             delivery_url = ?, delivered_at = ?, pipeline_running = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		video.Title, script, string(video.Status), formats,
		video.CostCents, nullableStringPtr(video.ApprovalNote), nullableTime(video.ApprovedAt),
		nullableStringPtr(video.DeliveryURL), nullableTime(video.DeliveredAt), boolToInt(video.PipelineRunning),
		formatTime(updatedAt), video.ID, string(from),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var current string
		if err := db.QueryRowContext(ctx, `SELECT status FROM videos WHERE id = ?`, video.ID).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.NotFound("video", video.ID)
			}
			return err
		}
		return staleVideo(video.ID, from, store.VideoStatus(current))
	}
	video.UpdatedAt = updatedAt
	return nil
}

func staleVideo(id string, expected, current store.VideoStatus) error {
	return store.Conflict("save video",
		fmt.Sprintf("video %s changed concurrently: expected %s, found %s", id, expected, current), nil)
}

// DeleteVideo removes a video and its assets.
func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "videos", "video", id)
}

// ClaimPipeline sets the in-flight guard when the video is idle in scripting.
func (s *Store) ClaimPipeline(ctx context.Context, id string) (*store.Video, error) {
	var claimed *store.Video
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE videos SET pipeline_running = 1, updated_at = ?
             WHERE id = ? AND pipeline_running = 0 AND status = ?`,
			formatTime(time.Now().UTC()), id, string(store.VideoScripting),
		)
		if err != nil {
			return err
		}
		video, err := s.getVideo(ctx, tx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return claimRefused(video)
		}
		claimed = video
		return nil
	})
	if err != nil {
		return nil, asStoreError("claim pipeline", err)
	}
	return claimed, nil
}

func claimRefused(video *store.Video) error {
	if video.PipelineRunning {
		return store.Conflict("claim pipeline", "pipeline already running for video "+video.ID, nil)
	}
	return services.Wrap(services.ErrInvalidTransition, "store", "claim pipeline",
		fmt.Sprintf("video %s is %s, pipeline requires %s", video.ID, video.Status, store.VideoScripting), nil)
}

// ReleasePipeline clears the in-flight guard.
func (s *Store) ReleasePipeline(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET pipeline_running = 0, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return store.Internal("release pipeline", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.NotFound("video", id)
	}
	return nil
}

// ResetStalePipelines clears guards and rolls generating/rendering videos back
// to scripting with note recorded as the approval note.
func (s *Store) ResetStalePipelines(ctx context.Context, note string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE videos
         SET status = CASE WHEN status IN (?, ?) THEN ? ELSE status END,
             approval_note = CASE WHEN status IN (?, ?) THEN ? ELSE approval_note END,
             pipeline_running = 0, updated_at = ?
         WHERE pipeline_running = 1 OR status IN (?, ?)`,
		string(store.VideoGenerating), string(store.VideoRendering), string(store.VideoScripting),
		string(store.VideoGenerating), string(store.VideoRendering), nullableString(note),
		formatTime(time.Now().UTC()),
		string(store.VideoGenerating), string(store.VideoRendering),
	)
	if err != nil {
		return 0, store.Internal("reset stale pipelines", err)
	}
	return res.RowsAffected()
}
