package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bomstudio/internal/services"
	"bomstudio/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn, verifies connectivity, and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := db.WithContext(ctx).Exec(schemaSQL).Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool     { return pgCode(err) == pgUniqueViolation }
func isForeignKeyViolation(err error) bool { return pgCode(err) == pgForeignKeyViolation }

func missingParent(operation, entity, id string) error {
	return store.Invalid(operation, entity+" not found", store.NotFound(entity, id))
}

func asStoreError(operation string, err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range []error{services.ErrNotFound, services.ErrConflict, services.ErrValidation, services.ErrInvalidTransition} {
		if errors.Is(err, marker) {
			return err
		}
	}
	if pgCode(err) == pgCheckViolation {
		return store.Invalid(operation, "value violates a table constraint", err)
	}
	return store.Internal(operation, err)
}

func paginate(tx *gorm.DB, page store.Page) *gorm.DB {
	page = page.Normalize()
	return tx.Offset(page.Offset).Limit(page.Limit)
}
