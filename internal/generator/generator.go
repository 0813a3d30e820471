// Package generator renders derived artifacts (tag pages and the dashboard)
// from an aggregation result and writes them only when their content changes.
package generator

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/checksum"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/parser"
	"github.com/starford/orgstate/internal/storage"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// Artifact types written into front-blocks.
const (
	TypeTagIndex  = "tag-index"
	TypeDashboard = "dashboard"
)

const (
	fieldType      = "type"
	fieldTag       = "tag"
	fieldGenerated = "generated"
	fieldPublish   = "publish"

	generatedLayout = "2006-01-02 15:04"
)

var frontOrder = []string{fieldType, fieldTag, fieldGenerated, fieldPublish}

// Options locates the artifacts under the root.
type Options struct {
	TagDir          string
	DashboardPath   string
	RecentKnowledge int
	RecentCompleted int
}

// DefaultOptions returns the standard artifact locations.
func DefaultOptions() Options {
	return Options{
		TagDir:          "tags",
		DashboardPath:   "publish-dashboard.md",
		RecentKnowledge: 10,
		RecentCompleted: 5,
	}
}

// Report lists what one generation pass did.
type Report struct {
	Written   []string
	Unchanged []string
	Removed   []string
	Failures  []apperr.Diagnostic
}

// Changed reports whether anything on disk changed.
func (r *Report) Changed() bool {
	return len(r.Written) > 0 || len(r.Removed) > 0
}

func (r *Report) merge(o *Report) {
	r.Written = append(r.Written, o.Written...)
	r.Unchanged = append(r.Unchanged, o.Unchanged...)
	r.Removed = append(r.Removed, o.Removed...)
	r.Failures = append(r.Failures, o.Failures...)
}

// Generator writes artifacts through a storage.Provider.
type Generator struct {
	store  storage.Provider
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New creates a Generator.
func New(store storage.Provider, opts Options, logger *slog.Logger, options ...Option) *Generator {
	def := DefaultOptions()
	if opts.TagDir == "" {
		opts.TagDir = def.TagDir
	}
	if opts.DashboardPath == "" {
		opts.DashboardPath = def.DashboardPath
	}
	if opts.RecentKnowledge <= 0 {
		opts.RecentKnowledge = def.RecentKnowledge
	}
	if opts.RecentCompleted <= 0 {
		opts.RecentCompleted = def.RecentCompleted
	}
	g := &Generator{store: store, opts: opts, logger: logger, now: time.Now}
	for _, o := range options {
		o(g)
	}
	return g
}

// All regenerates tag pages and the dashboard.
func (g *Generator) All(ctx context.Context, res *aggregate.Result) (*Report, error) {
	report, err := g.TagPages(ctx, res)
	if err != nil {
		return report, err
	}
	dash, err := g.Dashboard(ctx, res)
	report.merge(dash)
	return report, err
}

// TagPages writes one page per tag bucket and removes pages of tags that no
// longer exist.
func (g *Generator) TagPages(ctx context.Context, res *aggregate.Result) (*Report, error) {
	report := &Report{}
	tags := res.Keys(aggregate.PrefixTags)
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		body, err := renderTagPage(tag, res.Bucket(aggregate.PrefixTags+"."+tag))
		if err != nil {
			return report, fmt.Errorf("generator: render tag %q: %w", tag, err)
		}
		meta := models.Metadata{
			fieldType:    models.String(TypeTagIndex),
			fieldTag:     models.String(tag),
			fieldPublish: models.String("true"),
		}
		g.write(report, g.TagPagePath(tag), meta, body)
	}
	g.removeOrphans(ctx, report, tags)
	return report, ctx.Err()
}

// TagPagePath returns where the page for tag lives.
func (g *Generator) TagPagePath(tag string) string {
	return path.Join(g.opts.TagDir, tagFileName(tag)+".md")
}

// Dashboard writes the dashboard artifact.
func (g *Generator) Dashboard(ctx context.Context, res *aggregate.Result) (*Report, error) {
	report := &Report{}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "dashboard.md.tmpl", g.dashboardData(res)); err != nil {
		return report, fmt.Errorf("generator: render dashboard: %w", err)
	}
	meta := models.Metadata{fieldType: models.String(TypeDashboard)}
	g.write(report, g.opts.DashboardPath, meta, buf.String())
	return report, nil
}

// write stamps meta with the generated time and writes the artifact unless
// only that line would change.
func (g *Generator) write(report *Report, p string, meta models.Metadata, body string) {
	meta[fieldGenerated] = models.String(g.now().Format(generatedLayout))
	content := parser.Rewrite(meta, frontOrder, body)

	if existing, err := g.store.Read(p); err == nil {
		if checksum.SumExcept(existing, isGeneratedLine) == checksum.SumExcept(content, isGeneratedLine) {
			report.Unchanged = append(report.Unchanged, p)
			return
		}
	}
	if err := g.store.Write(p, content); err != nil {
		g.fail(report, p, err)
		return
	}
	report.Written = append(report.Written, p)
	g.logger.Info("generator: wrote artifact", slog.String("path", p))
}

func (g *Generator) removeOrphans(ctx context.Context, report *Report, tags []string) {
	files, err := g.store.List(g.opts.TagDir, ".md")
	if err != nil {
		g.fail(report, g.opts.TagDir, err)
		return
	}
	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		data, err := g.store.Read(f.Path)
		if err != nil {
			continue
		}
		res, err := parser.Parse(data)
		if err != nil || res.Metadata.Str(fieldType) != TypeTagIndex {
			continue
		}
		if _, found := slices.BinarySearch(tags, res.Metadata.Str(fieldTag)); found {
			continue
		}
		if err := g.store.Delete(f.Path); err != nil {
			g.fail(report, f.Path, err)
			continue
		}
		report.Removed = append(report.Removed, f.Path)
		g.logger.Info("generator: removed orphan", slog.String("path", f.Path))
	}
}

func (g *Generator) fail(report *Report, p string, err error) {
	g.logger.Error("generator: write failed", slog.String("path", p), slog.String("error", err.Error()))
	report.Failures = append(report.Failures, apperr.Diagnostic{
		Path: p,
		Err:  fmt.Errorf("%w: %v", apperr.ErrWriteFailure, err),
	})
}

func isGeneratedLine(line []byte) bool {
	return bytes.HasPrefix(line, []byte(fieldGenerated+":"))
}

// tagFileName percent-encodes bytes that are unsafe in a file name, and '%'
// itself, so distinct tags never share a page.
func tagFileName(tag string) string {
	var b strings.Builder
	for i := 0; i < len(tag); i++ {
		c := tag[i]
		if strings.IndexByte(`%/\:*?"<>|`, c) >= 0 || c < 0x20 {
			fmt.Fprintf(&b, "%%%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
