// Package sqlstore implements store.Store on database/sql, with PostgreSQL
// (lib/pq) and SQLite (glebarez/go-sqlite) dialects sharing one query set.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/web-search-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/web-search-engine/pkg/postgres"
	_ "github.com/glebarez/go-sqlite"
)

const (
	readyKey      = "index_ready"
	generationKey = "index_generation"
)

// Store is a store.Store backed by a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New wraps an open database and creates the schema if needed.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "sql-store", "dialect", dialect.Name),
	}
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating %s schema: %w", dialect.Name, err)
		}
	}
	s.logger.Info("schema ready")
	return s, nil
}

// OpenPostgres connects through pkg/postgres (with start-up retries).
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	client, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, client.DB, Postgres)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens (creating if needed) the database file at path, or a
// private in-memory database when path is ":memory:". SQLite allows one
// writer, so the pool is capped at a single connection.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating sqlite directory: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	s, err := New(ctx, db, SQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeBag(bag map[string]int) (string, error) {
	if bag == nil {
		bag = map[string]int{}
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return "", fmt.Errorf("encoding term bag: %w", err)
	}
	return string(data), nil
}

func decodeBag(data string) (map[string]int, error) {
	bag := make(map[string]int)
	if err := json.Unmarshal([]byte(data), &bag); err != nil {
		return nil, fmt.Errorf("decoding term bag: %w", err)
	}
	return bag, nil
}

func (s *Store) InsertCrawlRecord(ctx context.Context, rec store.CrawlRecord) (int64, error) {
	bag, err := encodeBag(rec.TermBag)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO crawl_records (url, title, term_bag) VALUES (?, ?, ?) RETURNING id`),
		rec.URL, rec.Title, bag,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting crawl record: %w", err)
	}
	return id, nil
}

func (s *Store) CrawlRecordExists(ctx context.Context, title, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT 1 FROM crawl_records WHERE title = ? AND url = ? LIMIT 1`),
		title, url,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("querying crawl record: %w", err)
	}
	return true, nil
}

func (s *Store) ListCrawlRecords(ctx context.Context) ([]store.CrawlRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url, title, term_bag FROM crawl_records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing crawl records: %w", err)
	}
	defer rows.Close()

	var records []store.CrawlRecord
	for rows.Next() {
		var rec store.CrawlRecord
		var bag string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Title, &bag); err != nil {
			return nil, fmt.Errorf("scanning crawl record: %w", err)
		}
		if rec.TermBag, err = decodeBag(bag); err != nil {
			return nil, fmt.Errorf("crawl record %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) CountCrawlRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting crawl records: %w", err)
	}
	return n, nil
}

func (s *Store) ResetCrawlRecords(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM crawl_records`); err != nil {
		return fmt.Errorf("resetting crawl records: %w", err)
	}
	return nil
}

func (s *Store) InsertDocument(ctx context.Context, doc store.Document) (int64, error) {
	bag, err := encodeBag(doc.TermBag)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO documents (url, title, term_bag) VALUES (?, ?, ?) RETURNING id`),
		doc.URL, doc.Title, bag,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}
	return id, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*store.Document, error) {
	doc := store.Document{ID: id}
	var bag string
	var length sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT url, title, term_bag, length FROM documents WHERE id = ?`),
		id,
	).Scan(&doc.URL, &doc.Title, &bag, &length)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying document %d: %w", id, err)
	}
	if doc.TermBag, err = decodeBag(bag); err != nil {
		return nil, fmt.Errorf("document %d: %w", id, err)
	}
	if length.Valid {
		doc.Length = &length.Float64
	}
	return &doc, nil
}

func (s *Store) ListDocumentIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

func (s *Store) SetDocumentLength(ctx context.Context, id int64, length float64) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE documents SET length = ? WHERE id = ?`), length, id)
	if err != nil {
		return fmt.Errorf("setting length of document %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %d: %w", id, apperrors.ErrDocumentNotFound)
	}
	return nil
}

func (s *Store) FindTerm(ctx context.Context, term string) (*store.PostingEntry, error) {
	entry := store.PostingEntry{Term: term}
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT doc_frequency FROM terms WHERE term = ?`),
		term,
	).Scan(&entry.DocFrequency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("term %q: %w", term, apperrors.ErrTermNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying term %q: %w", term, err)
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT document_id, title, url, term_doc_frequency FROM postings WHERE term = ? ORDER BY id`),
		term,
	)
	if err != nil {
		return nil, fmt.Errorf("querying postings of %q: %w", term, err)
	}
	defer rows.Close()
	for rows.Next() {
		var p store.Posting
		if err := rows.Scan(&p.DocumentID, &p.Title, &p.URL, &p.TermDocFrequency); err != nil {
			return nil, fmt.Errorf("scanning posting: %w", err)
		}
		entry.Postings = append(entry.Postings, p)
	}
	return &entry, rows.Err()
}

// UpsertTerm appends the posting and bumps doc_frequency in one
// transaction. A posting for a document already listed is a no-op.
func (s *Store) UpsertTerm(ctx context.Context, term string, p store.Posting) error {
	return postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO postings (term, document_id, title, url, term_doc_frequency)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (term, document_id) DO NOTHING`),
			term, p.DocumentID, p.Title, p.URL, p.TermDocFrequency,
		)
		if err != nil {
			return fmt.Errorf("inserting posting for %q: %w", term, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("posting rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO terms (term, doc_frequency) VALUES (?, 1)
			 ON CONFLICT (term) DO UPDATE SET doc_frequency = terms.doc_frequency + 1`),
			term,
		)
		if err != nil {
			return fmt.Errorf("upserting term %q: %w", term, err)
		}
		return nil
	})
}

func (s *Store) ListTerms(ctx context.Context) ([]store.PostingEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.term, t.doc_frequency, p.document_id, p.title, p.url, p.term_doc_frequency
		 FROM terms t JOIN postings p ON p.term = t.term
		 ORDER BY t.term, p.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	defer rows.Close()

	var entries []store.PostingEntry
	for rows.Next() {
		var term string
		var df int
		var p store.Posting
		if err := rows.Scan(&term, &df, &p.DocumentID, &p.Title, &p.URL, &p.TermDocFrequency); err != nil {
			return nil, fmt.Errorf("scanning term row: %w", err)
		}
		if n := len(entries); n == 0 || entries[n-1].Term != term {
			entries = append(entries, store.PostingEntry{Term: term, DocFrequency: df})
		}
		last := &entries[len(entries)-1]
		last.Postings = append(last.Postings, p)
	}
	return entries, rows.Err()
}

func (s *Store) ResetIndex(ctx context.Context) error {
	return postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{"postings", "terms", "documents"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clearing %s: %w", table, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO index_meta (name, value) VALUES (?, '1')
			 ON CONFLICT (name) DO UPDATE SET value = CAST(CAST(index_meta.value AS BIGINT) + 1 AS TEXT)`),
			generationKey,
		)
		if err != nil {
			return fmt.Errorf("advancing index generation: %w", err)
		}
		return setMeta(ctx, tx, s.dialect, readyKey, "false")
	})
}

func (s *Store) SetIndexReady(ctx context.Context, ready bool) error {
	value := "false"
	if ready {
		value = "true"
	}
	return postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return setMeta(ctx, tx, s.dialect, readyKey, value)
	})
}

func (s *Store) IsIndexReady(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM index_meta WHERE name = ?`), readyKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading index state: %w", err)
	}
	return strings.EqualFold(value, "true"), nil
}

func (s *Store) IndexGeneration(ctx context.Context) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM index_meta WHERE name = ?`), generationKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index generation: %w", err)
	}
	gen, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing index generation %q: %w", value, err)
	}
	return gen, nil
}

func setMeta(ctx context.Context, tx *sql.Tx, d Dialect, key, value string) error {
	_, err := tx.ExecContext(ctx,
		d.Rebind(`INSERT INTO index_meta (name, value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}
