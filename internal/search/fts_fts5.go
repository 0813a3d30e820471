//go:build sqlite_fts5

package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, title, body, tags string) error {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO records_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, title, body, tags)
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM records_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns hits with snippets.
// Each whitespace-separated term is quoted so user input never reaches the
// FTS query grammar.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, nil
	}
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	rows, err := ix.conn.QueryContext(ctx, `
		SELECT f.path,
		       r.kind,
		       f.title,
		       snippet(records_fts, 2, '<b>', '</b>', '...', 64)
		FROM records_fts f
		JOIN records r ON r.path = f.path
		WHERE records_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, strings.Join(terms, " "), limit)
	if err != nil {
		return nil, fmt.Errorf("search: search: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Path, &h.Kind, &h.Title, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
