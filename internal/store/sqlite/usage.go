package sqlite

import (
	"context"
	"database/sql"
	"time"

	"bomstudio/internal/store"
)

const usageColumns = "id, provider, action, project_id, cost_cents, created_at"

func scanUsage(row scanner) (*store.UsageRecord, error) {
	var (
		record     store.UsageRecord
		projectID  sql.NullString
		createdRaw sql.NullString
	)
	if err := row.Scan(&record.ID, &record.Provider, &record.Action, &projectID, &record.CostCents, &createdRaw); err != nil {
		return nil, err
	}
	record.ProjectID = projectID.String
	record.CreatedAt = parseTime(createdRaw)
	return &record, nil
}

// AppendUsage adds ledger entries in one transaction. Entries are never
// updated or deleted afterwards.
func (s *Store) AppendUsage(ctx context.Context, records ...*store.UsageRecord) error {
	now := time.Now().UTC()
	for _, record := range records {
		if err := store.PrepareUsage(record, now); err != nil {
			return err
		}
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, record := range records {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO api_usage (`+usageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
				record.ID, record.Provider, record.Action, nullableString(record.ProjectID),
				record.CostCents, formatTime(record.CreatedAt),
			)
			if isForeignKeyViolation(err) {
				return missingParent("append usage", "project", record.ProjectID)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	return asStoreError("append usage", err)
}

func usageWhere(filter store.UsageFilter) (string, []any) {
	clause := ` WHERE 1 = 1`
	var args []any
	if filter.ProjectID != "" {
		clause += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Provider != "" {
		clause += ` AND provider = ?`
		args = append(args, filter.Provider)
	}
	if !filter.Since.IsZero() {
		clause += ` AND created_at >= ?`
		args = append(args, formatTime(filter.Since))
	}
	return clause, args
}

// ListUsage returns ledger entries, oldest first.
func (s *Store) ListUsage(ctx context.Context, filter store.UsageFilter) ([]*store.UsageRecord, error) {
	where, args := usageWhere(filter)
	limit, limitArgs := pageClause(filter.Page)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM api_usage`+where+` ORDER BY created_at, rowid`+limit,
		append(args, limitArgs...)...)
	if err != nil {
		return nil, store.Internal("list usage", err)
	}
	defer rows.Close()

	var records []*store.UsageRecord
	for rows.Next() {
		record, err := scanUsage(rows)
		if err != nil {
			return nil, store.Internal("scan usage", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal("list usage", err)
	}
	return records, nil
}

// SumUsage totals ledger cost for filter, ignoring pagination.
func (s *Store) SumUsage(ctx context.Context, filter store.UsageFilter) (int, error) {
	where, args := usageWhere(filter)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(cost_cents), 0) FROM api_usage`+where, args...).Scan(&total); err != nil {
		return 0, store.Internal("sum usage", err)
	}
	return total, nil
}
