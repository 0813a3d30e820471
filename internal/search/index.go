package search

import (
	"context"
	"iter"

	"github.com/starford/orgstate/internal/models"
)

// Searcher defines the read side of the record index. Consumers depend on
// this interface rather than the concrete *Index.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Hit, error)
	Backlinks(ctx context.Context, path string) ([]string, error)
	TagStats(ctx context.Context) ([]TagCount, error)
	PathsWithTag(ctx context.Context, tag string) ([]string, error)
}

// Loader fills an index from scanned records.
type Loader interface {
	Load(ctx context.Context, records iter.Seq[models.Record]) error
	Upsert(ctx context.Context, rec models.Record) error
	Delete(ctx context.Context, path string) error
}

// Verify *Index satisfies both interfaces at compile time.
var (
	_ Searcher = (*Index)(nil)
	_ Loader   = (*Index)(nil)
)
