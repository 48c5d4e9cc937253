package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bomstudio/internal/store"
)

// CreateClient inserts a client. A duplicate email fails with ErrConflict.
func (s *Store) CreateClient(ctx context.Context, client *store.Client) error {
	if err := store.PrepareClient(client, time.Now().UTC()); err != nil {
		return err
	}
	row := clientModelFromEntity(client)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return store.Conflict("create client", "email already registered", nil)
		}
		return store.Internal("create client", err)
	}
	return nil
}

// GetClient fetches a client by id.
func (s *Store) GetClient(ctx context.Context, id string) (*store.Client, error) {
	return getClient(s.db.WithContext(ctx), "id = ?", id)
}

// GetClientByEmail fetches a client by case-normalized email.
func (s *Store) GetClientByEmail(ctx context.Context, email string) (*store.Client, error) {
	return getClient(s.db.WithContext(ctx), "email = ?", store.NormalizeEmail(email))
}

func getClient(tx *gorm.DB, where, arg string) (*store.Client, error) {
	var row clientModel
	if err := tx.Where(where, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFound("client", arg)
		}
		return nil, store.Internal("get client", err)
	}
	return row.toEntity(), nil
}

// FindClients lists clients ordered by creation time.
func (s *Store) FindClients(ctx context.Context, filter store.ClientFilter) ([]*store.Client, error) {
	tx := s.db.WithContext(ctx).Model(&clientModel{})
	if filter.Package != "" {
		tx = tx.Where("package = ?", string(filter.Package))
	}
	var rows []clientModel
	if err := paginate(tx.Order("created_at, id"), filter.Page).Find(&rows).Error; err != nil {
		return nil, store.Internal("find clients", err)
	}
	clients := make([]*store.Client, 0, len(rows))
	for _, row := range rows {
		clients = append(clients, row.toEntity())
	}
	return clients, nil
}

// UpdateClient applies a partial update inside a transaction.
func (s *Store) UpdateClient(ctx context.Context, id string, patch store.ClientPatch) (*store.Client, error) {
	if err := store.ValidateStruct("update client", patch); err != nil {
		return nil, err
	}
	var updated *store.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := getClient(tx, "id = ?", id)
		if err != nil {
			return err
		}
		patch.Apply(client)
		client.UpdatedAt = time.Now().UTC()
		row := clientModelFromEntity(client)
		err = tx.Model(&clientModel{}).Where("id = ?", id).Updates(map[string]any{
			"name":       row.Name,
			"email":      row.Email,
			"package":    row.Package,
			"brand_kit":  row.BrandKit,
			"updated_at": row.UpdatedAt,
		}).Error
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

// DeleteClient removes a client and its projects, videos, and assets.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &clientModel{}, "client", id)
}

func (s *Store) deleteByID(ctx context.Context, model any, entity, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if result.Error != nil {
		return store.Internal("delete "+entity, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.NotFound(entity, id)
	}
	return nil
}
