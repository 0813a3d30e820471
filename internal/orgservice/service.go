// Package orgservice is the read/write façade over the org tree used by the
// HTTP API and the MCP server.
package orgservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/generator"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/scanner"
	"github.com/starford/orgstate/internal/search"
	"github.com/starford/orgstate/internal/storage"
)

// Options configures how the service scans and generates.
type Options struct {
	Scan         scanner.Options
	InboxFolders map[string]string
	Generate     generator.Options
}

// Service coordinates scanning, aggregation, search and front-block writes.
// Every call rescans the tree; nothing is cached between calls.
type Service struct {
	store  storage.Provider
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for classification and dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a new org service.
func New(store storage.Provider, opts Options, logger *slog.Logger, options ...Option) *Service {
	if opts.InboxFolders == nil {
		opts.InboxFolders = aggregate.DefaultInboxFolders
	}
	s := &Service{store: store, opts: opts, logger: logger, now: time.Now}
	for _, o := range options {
		o(s)
	}
	return s
}

// State summarizes one aggregation pass.
type State struct {
	Root        string         `json:"root"`
	GeneratedAt time.Time      `json:"generated_at"`
	Records     int            `json:"records"`
	Skipped     int            `json:"skipped"`
	Buckets     map[string]int `json:"buckets"`
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

// Diagnostic is the serializable form of apperr.Diagnostic.
type Diagnostic struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Snapshot scans the tree and aggregates it with the default policies.
func (s *Service) Snapshot(ctx context.Context) (*scanner.Snapshot, *aggregate.Result, error) {
	snap, err := s.scan(ctx)
	if err != nil {
		return nil, nil, err
	}
	res := aggregate.Aggregate(snap.Records, aggregate.Default(s.now(), s.opts.InboxFolders)...)
	return snap, res, nil
}

// State returns bucket sizes and scan diagnostics.
func (s *Service) State(ctx context.Context) (*State, error) {
	snap, res, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	st := &State{
		Root:        snap.Root,
		GeneratedAt: s.now(),
		Records:     len(snap.Records),
		Skipped:     snap.Skipped(),
		Buckets:     make(map[string]int),
		Diagnostics: make([]Diagnostic, 0, len(snap.Diagnostics)),
	}
	for _, name := range res.Names() {
		st.Buckets[name] = res.Len(name)
	}
	for _, d := range snap.Diagnostics {
		st.Diagnostics = append(st.Diagnostics, Diagnostic{Path: d.Path, Error: d.Err.Error()})
	}
	return st, nil
}

// Bucket returns the records of one named bucket. Unknown names yield
// apperr.ErrNotFound.
func (s *Service) Bucket(ctx context.Context, name string) ([]models.Record, error) {
	_, res, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !res.Has(name) {
		return nil, fmt.Errorf("orgservice: bucket %q: %w", name, apperr.ErrNotFound)
	}
	return nonNilSlice(res.Bucket(name)), nil
}

// Search runs a full-text query over a freshly built index.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]search.Hit, error) {
	var hits []search.Hit
	err := s.withIndex(ctx, func(ix search.Searcher) error {
		var err error
		hits, err = ix.Search(ctx, query, limit)
		return err
	})
	return nonNilSlice(hits), err
}

// Backlinks returns the paths of documents that link to path.
func (s *Service) Backlinks(ctx context.Context, path string) ([]string, error) {
	var out []string
	err := s.withIndex(ctx, func(ix search.Searcher) error {
		var err error
		out, err = ix.Backlinks(ctx, path)
		return err
	})
	return nonNilSlice(out), err
}

// TagStats returns every tag with its document count.
func (s *Service) TagStats(ctx context.Context) ([]search.TagCount, error) {
	var out []search.TagCount
	err := s.withIndex(ctx, func(ix search.Searcher) error {
		var err error
		out, err = ix.TagStats(ctx)
		return err
	})
	return nonNilSlice(out), err
}

// Tagged returns the paths carrying tag, sorted.
func (s *Service) Tagged(ctx context.Context, tag string) ([]string, error) {
	var out []string
	err := s.withIndex(ctx, func(ix search.Searcher) error {
		var err error
		out, err = ix.PathsWithTag(ctx, tag)
		return err
	})
	sort.Strings(out)
	return nonNilSlice(out), err
}

func (s *Service) scan(ctx context.Context) (*scanner.Snapshot, error) {
	snap, err := scanner.Scan(ctx, s.opts.Scan, s.logger)
	if err != nil {
		return nil, fmt.Errorf("orgservice: scan: %w", err)
	}
	return snap, nil
}

func (s *Service) withIndex(ctx context.Context, fn func(search.Searcher) error) error {
	snap, err := s.scan(ctx)
	if err != nil {
		return err
	}
	ix, err := search.Build(ctx, snap.All())
	if err != nil {
		return fmt.Errorf("orgservice: build index: %w", err)
	}
	defer func() {
		if err := ix.Close(); err != nil {
			s.logger.Warn("close index", slog.String("error", err.Error()))
		}
	}()
	return fn(ix)
}

// Generate scans, aggregates and regenerates every derived artifact.
func (s *Service) Generate(ctx context.Context) (*generator.Report, error) {
	_, res, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	g := generator.New(s.store, s.opts.Generate, s.logger, generator.WithClock(s.now))
	return g.All(ctx, res)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
