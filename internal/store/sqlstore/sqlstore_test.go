package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store/storetest"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
)

func TestSQLiteContract(t *testing.T) {
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	storetest.Run(t, s)
}

func TestSQLiteFilePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "search.db")
	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if _, err := s.InsertCrawlRecord(ctx, store.CrawlRecord{URL: "u", Title: "t", TermBag: map[string]int{"a": 1}}); err != nil {
		t.Fatalf("InsertCrawlRecord: %v", err)
	}
	if err := s.SetIndexReady(ctx, true); err != nil {
		t.Fatalf("SetIndexReady: %v", err)
	}
	s.Close()

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if n, _ := reopened.CountCrawlRecords(ctx); n != 1 {
		t.Errorf("CountCrawlRecords = %d, want 1", n)
	}
	if ready, _ := reopened.IsIndexReady(ctx); !ready {
		t.Error("ready flag not persisted")
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT a FROM t WHERE b = ? AND c = ?`
	if got := Postgres.Rebind(q); got != `SELECT a FROM t WHERE b = $1 AND c = $2` {
		t.Errorf("postgres rebind = %q", got)
	}
	if got := SQLite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

// TestPostgresContract runs against a disposable database and skips when
// none is reachable.
func TestPostgresContract(t *testing.T) {
	cfg := config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "websearch_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "websearch"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnectAttempts: 1,
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, cfg)
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	for _, table := range []string{"crawl_records", "postings", "terms", "documents", "index_meta"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("clearing %s: %v", table, err)
		}
	}
	storetest.Run(t, s)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
