package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"bomstudio/internal/store"
)

// AppendUsage adds ledger entries in one transaction.
func (s *Store) AppendUsage(ctx context.Context, records ...*store.UsageRecord) error {
	now := time.Now().UTC()
	rows := make([]usageModel, 0, len(records))
	for _, record := range records {
		if err := store.PrepareUsage(record, now); err != nil {
			return err
		}
		rows = append(rows, usageModel{
			ID:        record.ID,
			Provider:  record.Provider,
			Action:    record.Action,
			ProjectID: store.StringPtr(record.ProjectID),
			CostCents: record.CostCents,
			CreatedAt: record.CreatedAt.UTC(),
		})
	}
	if len(rows) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Create(&rows[i]).Error
			if isForeignKeyViolation(err) {
				return missingParent("append usage", "project", records[i].ProjectID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return asStoreError("append usage", err)
}

func usageQuery(tx *gorm.DB, filter store.UsageFilter) *gorm.DB {
	tx = tx.Model(&usageModel{})
	if filter.ProjectID != "" {
		tx = tx.Where("project_id = ?", filter.ProjectID)
	}
	if filter.Provider != "" {
		tx = tx.Where("provider = ?", filter.Provider)
	}
	if !filter.Since.IsZero() {
		tx = tx.Where("created_at >= ?", filter.Since.UTC())
	}
	return tx
}

// ListUsage returns ledger entries, oldest first.
func (s *Store) ListUsage(ctx context.Context, filter store.UsageFilter) ([]*store.UsageRecord, error) {
	var rows []usageModel
	tx := usageQuery(s.db.WithContext(ctx), filter).Order("created_at, id")
	if err := paginate(tx, filter.Page).Find(&rows).Error; err != nil {
		return nil, store.Internal("list usage", err)
	}
	records := make([]*store.UsageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toEntity())
	}
	return records, nil
}

// SumUsage totals ledger cost for filter, ignoring pagination.
func (s *Store) SumUsage(ctx context.Context, filter store.UsageFilter) (int, error) {
	var total int
	if err := usageQuery(s.db.WithContext(ctx), filter).Select("COALESCE(SUM(cost_cents), 0)").Scan(&total).Error; err != nil {
		return 0, store.Internal("sum usage", err)
	}
	return total, nil
}
