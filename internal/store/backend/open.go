// Package backend opens the store.Store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/sqlstore"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
)

// Open returns the store for cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	slog.Info("opening store", "driver", cfg.Store.Driver)
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewMemory(), nil
	case config.DriverSQLite:
		s, err := sqlstore.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := sqlstore.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
