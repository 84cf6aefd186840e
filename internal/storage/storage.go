// Package storage opens the Backend Data Service selected by configuration.
package storage

import (
	"context"
	"fmt"

	"salonbook/internal/config"
	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/pgstore"

	"github.com/rs/zerolog"
)

// Open returns the configured store. SQLite stores are also returned as
// *database.DB so callers can run file backups.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (domain.Repository, *database.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		store, err := pgstore.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.DriverSQLite, "":
		db, err := database.NewDB(cfg.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, db, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
