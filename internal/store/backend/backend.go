// Package backend opens the entity store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"bomstudio/internal/config"
	"bomstudio/internal/store"
	"bomstudio/internal/store/postgres"
	"bomstudio/internal/store/sqlite"
)

// Open returns the configured store.Store implementation.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		return sqlite.Open(cfg)
	case "postgres":
		return postgres.Open(ctx, cfg.Storage.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
