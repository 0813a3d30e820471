// Package search provides an in-memory SQLite index over scanned records
// with optional FTS5 full-text search. The index is rebuilt for every
// invocation and never written to disk.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/orgstate/internal/models"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS records (
	path        TEXT PRIMARY KEY,
	kind        TEXT NOT NULL DEFAULT 'unknown',
	title       TEXT NOT NULL DEFAULT '',
	tags        TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	modified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS record_tags (
	path TEXT NOT NULL,
	tag  TEXT NOT NULL,
	UNIQUE(path, tag)
);

CREATE TABLE IF NOT EXISTS links (
	source TEXT NOT NULL,
	target TEXT NOT NULL COLLATE NOCASE,
	UNIQUE(source, target)
);

CREATE INDEX IF NOT EXISTS idx_record_tags_tag ON record_tags(tag);
CREATE INDEX IF NOT EXISTS idx_links_target ON links(target);
`

var memSeq atomic.Int64

// Index wraps a sql.DB holding one in-memory database.
type Index struct {
	conn *sql.DB
}

// Open creates an empty in-memory index. Every call gets its own database.
func Open() (*Index, error) {
	dsn := fmt.Sprintf("file:orgstate-%d?mode=memory&cache=shared&_busy_timeout=5000", memSeq.Add(1))
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("search: open db: %w", err)
	}
	// The database lives as long as its one connection.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply fts schema: %w", err)
	}
	return &Index{conn: conn}, nil
}

// Build opens an index and loads records into it.
func Build(ctx context.Context, records iter.Seq[models.Record]) (*Index, error) {
	ix, err := Open()
	if err != nil {
		return nil, err
	}
	if err := ix.Load(ctx, records); err != nil {
		ix.Close()
		return nil, err
	}
	return ix, nil
}

// Close releases the database. Its contents are gone afterwards.
func (ix *Index) Close() error {
	return ix.conn.Close()
}
