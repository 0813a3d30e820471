// Package scanner walks the org tree and turns every document into a
// models.Record.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/parser"
)

// DefaultMaxFileSize bounds a single document read.
const DefaultMaxFileSize = 1 << 20

// Options controls a scan.
type Options struct {
	Root      string
	Extension string
	// ExcludeDirs are directory names pruned wherever they occur, or
	// slash-separated paths pruned relative to the root.
	ExcludeDirs []string
	// ExcludeFiles without a "/" match a basename at any depth; with a "/"
	// they are path.Match patterns against the relative path.
	ExcludeFiles []string
	// IncludeFiles re-admit files an ExcludeFiles entry would drop.
	IncludeFiles []string
	MaxFileSize  int64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions(root string) Options {
	return Options{
		Root:         root,
		Extension:    ".md",
		ExcludeDirs:  []string{".git", ".obsidian", ".trash", "node_modules", "tags", "setup"},
		ExcludeFiles: []string{"CLAUDE.md", "README.md", "ONBOARDING.md", "QUICKSTART.md", "CONTRIBUTING.md", "publish-dashboard.md"},
		IncludeFiles: []string{"projects/*/README.md"},
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// Snapshot is the outcome of one scan: records sorted by path plus one
// diagnostic per skipped or malformed file.
type Snapshot struct {
	Root        string
	Records     []models.Record
	Diagnostics []apperr.Diagnostic
}

// All iterates over the records in path order.
func (s *Snapshot) All() iter.Seq[models.Record] {
	return slices.Values(s.Records)
}

// Skipped returns how many files were left out of the snapshot.
func (s *Snapshot) Skipped() int {
	return apperr.Count(s.Diagnostics, apperr.ErrUnreadableFile)
}

// Lookup returns the record at path.
func (s *Snapshot) Lookup(p string) (models.Record, bool) {
	i, ok := slices.BinarySearchFunc(s.Records, p, func(r models.Record, target string) int {
		return strings.Compare(r.Path, target)
	})
	if !ok {
		return models.Record{}, false
	}
	return s.Records[i], true
}

// Scan walks opts.Root. Unreadable files are skipped with a diagnostic and a
// warning; they never fail the scan. A missing root returns
// apperr.ErrMissingRoot.
func Scan(ctx context.Context, opts Options, logger *slog.Logger) (*Snapshot, error) {
	if opts.Extension == "" {
		opts.Extension = ".md"
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("scanner: %s: %w", root, apperr.ErrMissingRoot)
	}

	snap := &Snapshot{Root: root}
	skip := func(rel string, err error) {
		snap.Diagnostics = append(snap.Diagnostics, apperr.Diagnostic{Path: rel, Err: err})
	}

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel := relPath(root, p)
		if err != nil {
			if p == root {
				return err
			}
			logger.Warn("scan: skipped", slog.String("path", rel), slog.String("error", err.Error()))
			skip(rel, fmt.Errorf("%w: %v", apperr.ErrUnreadableFile, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && (slices.Contains(opts.ExcludeDirs, d.Name()) || slices.Contains(opts.ExcludeDirs, rel)) {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), opts.Extension) || excluded(rel, opts) {
			return nil
		}

		rec, err := load(p, rel, d, opts.MaxFileSize)
		switch {
		case errors.Is(err, apperr.ErrUnreadableFile):
			logger.Warn("scan: skipped", slog.String("path", rel), slog.String("error", err.Error()))
			skip(rel, err)
			return nil
		case errors.Is(err, apperr.ErrMalformedFrontBlock):
			logger.Debug("scan: malformed front-block", slog.String("path", rel))
			skip(rel, err)
		}
		snap.Records = append(snap.Records, rec)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scanner: walk: %w", walkErr)
	}

	slices.SortStableFunc(snap.Records, func(a, b models.Record) int {
		return strings.Compare(a.Path, b.Path)
	})
	logger.Debug("scan: done",
		slog.String("root", root),
		slog.Int("records", len(snap.Records)),
		slog.Int("diagnostics", len(snap.Diagnostics)))
	return snap, nil
}

// load reads and parses one document. A malformed front-block still yields a
// record, returned together with the parse error.
func load(abs, rel string, d fs.DirEntry, maxSize int64) (models.Record, error) {
	info, err := d.Info()
	if err == nil && info.Mode()&fs.ModeSymlink != 0 {
		info, err = os.Stat(abs)
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", apperr.ErrUnreadableFile, err)
	}
	if !info.Mode().IsRegular() {
		return models.Record{}, fmt.Errorf("%w: not a regular file", apperr.ErrUnreadableFile)
	}
	if info.Size() > maxSize {
		return models.Record{}, fmt.Errorf("%w: %d bytes exceeds limit", apperr.ErrUnreadableFile, info.Size())
	}
	data, err := readLimited(abs, maxSize)
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: %v", apperr.ErrUnreadableFile, err)
	}
	if !utf8.Valid(data) {
		return models.Record{}, fmt.Errorf("%w: not valid UTF-8", apperr.ErrUnreadableFile)
	}

	res, parseErr := parser.Parse(data)
	title := res.Title
	if title == "" {
		title = parser.FallbackTitle(rel)
	}
	return models.Record{
		Path:       rel,
		Kind:       inferKind(rel, res.Metadata),
		Metadata:   res.Metadata,
		Title:      title,
		Tags:       res.Tags,
		Links:      res.Links,
		Body:       res.Body,
		ModifiedAt: info.ModTime(),
	}, parseErr
}

// readLimited reads at most maxSize bytes; a file that grew past the limit
// after the stat is rejected.
func readLimited(name string, maxSize int64) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("more than %d bytes", maxSize)
	}
	return data, nil
}

// inferKind prefers an explicit "type" field and falls back to the top-level
// directory.
func inferKind(rel string, meta models.Metadata) models.Kind {
	if k, ok := models.ParseKind(meta.Str("type")); ok {
		return k
	}
	top, _, found := strings.Cut(rel, "/")
	if !found {
		return models.KindUnknown
	}
	switch top {
	case "tasks":
		return models.KindTask
	case "reminders":
		return models.KindReminder
	case "knowledge":
		return models.KindKnowledge
	case "inbox":
		return models.KindInbox
	case "projects":
		return models.KindProject
	}
	return models.KindUnknown
}

func excluded(rel string, opts Options) bool {
	return matchAny(rel, opts.ExcludeFiles) && !matchAny(rel, opts.IncludeFiles)
}

func matchAny(rel string, patterns []string) bool {
	base := path.Base(rel)
	for _, pat := range patterns {
		if !strings.Contains(pat, "/") {
			if pat == base {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
