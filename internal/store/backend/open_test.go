package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/sqlstore"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()

	cfg := config.Default()
	cfg.Store.Driver = config.DriverMemory
	s, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*store.Memory); !ok {
		t.Errorf("memory driver returned %T", s)
	}

	cfg.Store.Driver = config.DriverSQLite
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "ws.db")
	s, err = Open(ctx, cfg)
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*sqlstore.Store); !ok {
		t.Errorf("sqlite driver returned %T", s)
	}

	cfg.Store.Driver = "mongo"
	if _, err := Open(ctx, cfg); err == nil {
		t.Error("expected error for unknown driver")
	}
}
