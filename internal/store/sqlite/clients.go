package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bomstudio/internal/store"
)

const clientColumns = "id, name, email, package, brand_kit, created_at, updated_at"

func scanClient(row scanner) (*store.Client, error) {
	var (
		client                 store.Client
		pkg                    string
		brandKit               sql.NullString
		createdRaw, updatedRaw sql.NullString
	)
	if err := row.Scan(&client.ID, &client.Name, &client.Email, &pkg, &brandKit, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	client.Package = store.Package(pkg)
	client.BrandKit = rawJSON(brandKit)
	client.CreatedAt = parseTime(createdRaw)
	client.UpdatedAt = parseTime(updatedRaw)
	return &client, nil
}

// CreateClient inserts a client. A duplicate email fails with ErrConflict.
func (s *Store) CreateClient(ctx context.Context, client *store.Client) error {
	if err := store.PrepareClient(client, time.Now().UTC()); err != nil {
		return err
	}
	brandKit, err := store.MarshalNullableJSON(client.BrandKit)
	if err != nil {
		return store.Invalid("create client", "brand_kit is not valid JSON", err)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		client.ID, client.Name, client.Email, string(client.Package), brandKit,
		formatTime(client.CreatedAt), formatTime(client.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.Conflict("create client", "email already registered", nil)
	}
	if err != nil {
		return store.Internal("create client", err)
	}
	return nil
}

// GetClient fetches a client by id.
func (s *Store) GetClient(ctx context.Context, id string) (*store.Client, error) {
	return s.getClient(ctx, s.db, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id, id)
}

// GetClientByEmail fetches a client by case-normalized email.
func (s *Store) GetClientByEmail(ctx context.Context, email string) (*store.Client, error) {
	normalized := store.NormalizeEmail(email)
	return s.getClient(ctx, s.db, `SELECT `+clientColumns+` FROM clients WHERE email = ?`, normalized, normalized)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getClient(ctx context.Context, q querier, query, arg, label string) (*store.Client, error) {
	client, err := scanClient(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("client", label)
	}
	if err != nil {
		return nil, store.Internal("get client", err)
	}
	return client, nil
}

// FindClients lists clients ordered by creation time.
func (s *Store) FindClients(ctx context.Context, filter store.ClientFilter) ([]*store.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	var args []any
	if filter.Package != "" {
		query += ` WHERE package = ?`
		args = append(args, string(filter.Package))
	}
	limit, limitArgs := pageClause(filter.Page)
	query += ` ORDER BY created_at, id` + limit
	args = append(args, limitArgs...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Internal("find clients", err)
	}
	defer rows.Close()

	var clients []*store.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, store.Internal("scan client", err)
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Internal("find clients", err)
	}
	return clients, nil
}

// UpdateClient applies a partial update inside a transaction.
func (s *Store) UpdateClient(ctx context.Context, id string, patch store.ClientPatch) (*store.Client, error) {
	if err := store.ValidateStruct("update client", patch); err != nil {
		return nil, err
	}
	var updated *store.Client
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		client, err := s.getClient(ctx, tx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id, id)
		if err != nil {
			return err
		}
		patch.Apply(client)
		client.UpdatedAt = time.Now().UTC()
		brandKit, err := store.MarshalNullableJSON(client.BrandKit)
		if err != nil {
			return store.Invalid("update client", "brand_kit is not valid JSON", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE clients SET name = ?, email = ?, package = ?, brand_kit = ?, updated_at = ? WHERE id = ?`,
			client.Name, client.Email, string(client.Package), brandKit, formatTime(client.UpdatedAt), id,
		)
		if isUniqueViolation(err) {
			return store.Conflict("update client", "email already registered", nil)
		}
		if err != nil {
			return err
		}
		updated = client
		return nil
	})
	if err != nil {
		return nil, asStoreError("update client", err)
	}
	return updated, nil
}

// DeleteClient removes a client and, through cascading keys, its projects,
// videos, and assets.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "clients", "client", id)
}

func (s *Store) deleteByID(ctx context.Context, table, entity, id string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return store.Internal("delete "+entity, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.NotFound(entity, id)
	}
	return nil
}
