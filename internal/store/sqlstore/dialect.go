package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL backends.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect struct {
	Name     string
	Schema   []string
	numbered bool
}

// Postgres uses $n placeholders and BIGSERIAL keys.
var Postgres = Dialect{
	Name:     "postgres",
	numbered: true,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS crawl_records (
			id         BIGSERIAL PRIMARY KEY,
			url        TEXT NOT NULL,
			title      TEXT NOT NULL,
			term_bag   TEXT NOT NULL,
			crawled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_records_title_url ON crawl_records (title, url)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id       BIGSERIAL PRIMARY KEY,
			url      TEXT NOT NULL,
			title    TEXT NOT NULL,
			term_bag TEXT NOT NULL,
			length   DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS terms (
			term          TEXT PRIMARY KEY,
			doc_frequency INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS postings (
			id                 BIGSERIAL PRIMARY KEY,
			term               TEXT NOT NULL,
			document_id        BIGINT NOT NULL,
			title              TEXT NOT NULL,
			url                TEXT NOT NULL,
			term_doc_frequency INTEGER NOT NULL,
			UNIQUE (term, document_id)
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			name  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
}

// SQLite keeps '?' placeholders. The driver is glebarez/go-sqlite.
var SQLite = Dialect{
	Name: "sqlite",
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS crawl_records (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			url        TEXT NOT NULL,
			title      TEXT NOT NULL,
			term_bag   TEXT NOT NULL,
			crawled_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_records_title_url ON crawl_records (title, url)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			url      TEXT NOT NULL,
			title    TEXT NOT NULL,
			term_bag TEXT NOT NULL,
			length   REAL
		)`,
		`CREATE TABLE IF NOT EXISTS terms (
			term          TEXT PRIMARY KEY,
			doc_frequency INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS postings (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			term               TEXT NOT NULL,
			document_id        INTEGER NOT NULL,
			title              TEXT NOT NULL,
			url                TEXT NOT NULL,
			term_doc_frequency INTEGER NOT NULL,
			UNIQUE (term, document_id)
		)`,
		`CREATE TABLE IF NOT EXISTS index_meta (
			name  TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
}

// Rebind rewrites '?' placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
