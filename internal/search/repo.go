package search

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/starford/orgstate/internal/models"
)

// Hit is one search result.
type Hit struct {
	Path    string      `json:"path"`
	Kind    models.Kind `json:"kind"`
	Title   string      `json:"title"`
	Snippet string      `json:"snippet"`
}

// TagCount is a tag with the number of records carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Load inserts every record in one transaction.
func (ix *Index) Load(ctx context.Context, records iter.Seq[models.Record]) error {
	tx, err := ix.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for rec := range records {
		if err := upsert(ctx, tx, rec); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Upsert inserts or replaces one record, its tags, links and FTS entry.
func (ix *Index) Upsert(ctx context.Context, rec models.Record) error {
	tx, err := ix.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := upsert(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

func upsert(ctx context.Context, tx *sql.Tx, rec models.Record) error {
	tags := strings.Join(rec.Tags, " ")
	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (path, kind, title, tags, body, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			kind        = excluded.kind,
			title       = excluded.title,
			tags        = excluded.tags,
			body        = excluded.body,
			modified_at = excluded.modified_at
	`, rec.Path, string(rec.Kind), rec.DisplayTitle(), tags, rec.Body, rec.ModifiedAt)
	if err != nil {
		return fmt.Errorf("search: upsert record: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, rec.Path, rec.DisplayTitle(), rec.Body, tags); err != nil {
		return err
	}

	_, _ = tx.ExecContext(ctx, `DELETE FROM record_tags WHERE path = ?`, rec.Path)
	for _, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO record_tags (path, tag) VALUES (?, ?)`, rec.Path, tag); err != nil {
			return fmt.Errorf("search: insert tag: %w", err)
		}
	}

	_, _ = tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, rec.Path)
	if len(rec.Links) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("search: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range rec.Links {
			if _, err := stmt.ExecContext(ctx, rec.Path, target); err != nil {
				return fmt.Errorf("search: insert link: %w", err)
			}
		}
	}
	return nil
}

// Delete removes a record with its tags, outgoing links and FTS entry.
func (ix *Index) Delete(ctx context.Context, path string) error {
	tx, err := ix.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.ExecContext(ctx, `DELETE FROM record_tags WHERE path = ?`, path)
	_, _ = tx.ExecContext(ctx, `DELETE FROM links WHERE source = ?`, path)
	_, _ = tx.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, path)

	return tx.Commit()
}

// Backlinks returns the records whose wikilinks resolve to path. A link
// matches by full path with or without extension, or by file stem.
func (ix *Index) Backlinks(ctx context.Context, path string) ([]string, error) {
	noExt := strings.TrimSuffix(path, ".md")
	stem := noExt
	if i := strings.LastIndex(stem, "/"); i >= 0 {
		stem = stem[i+1:]
	}
	rows, err := ix.conn.QueryContext(ctx, `
		SELECT DISTINCT source FROM links
		WHERE target IN (?, ?, ?) AND source <> ?
		ORDER BY source
	`, path, noExt, stem, path)
	if err != nil {
		return nil, fmt.Errorf("search: backlinks: %w", err)
	}
	return scanStrings(rows)
}

// TagStats returns every tag with its record count, most used first.
func (ix *Index) TagStats(ctx context.Context) ([]TagCount, error) {
	rows, err := ix.conn.QueryContext(ctx, `
		SELECT tag, count(*) AS n FROM record_tags
		GROUP BY tag
		ORDER BY n DESC, tag ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("search: tag stats: %w", err)
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// PathsWithTag returns the records carrying tag, by path.
func (ix *Index) PathsWithTag(ctx context.Context, tag string) ([]string, error) {
	rows, err := ix.conn.QueryContext(ctx, `SELECT path FROM record_tags WHERE tag = ? ORDER BY path`, tag)
	if err != nil {
		return nil, fmt.Errorf("search: paths with tag: %w", err)
	}
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
