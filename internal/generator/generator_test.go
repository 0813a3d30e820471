package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/scanner"
	"github.com/starford/orgstate/internal/storage"
	"github.com/starford/orgstate/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func sampleTree() testutil.Files {
	return testutil.Files{
		"tasks/fix-login.md":        testutil.Doc("# Fix Login\n", "type: task", "status: active", "tags: [auth, go]"),
		"tasks/wait-vendor.md":      testutil.Doc("", "status: blocked", "blocked-by: [vendor, legal]"),
		"tasks/completed/ship.md":   testutil.Doc("", "status: complete", "completed: 2026-10-01"),
		"knowledge/go/generics.md":  testutil.Doc("# Generics\n", "tags: go", "updated: 2026-09-01"),
		"projects/viewer/README.md": testutil.Doc("# Viewer\n", "status: active", "tags: [go]"),
		"reminders/call.md":         testutil.Doc("", "remind-at: 2026-10-18"),
		"inbox/ideas/idea.md":       testutil.Doc("", "created: 2026-10-10"),
	}
}

func aggregateTree(t *testing.T, root string) *aggregate.Result {
	t.Helper()
	snap, err := scanner.Scan(context.Background(), scanner.DefaultOptions(root), discard)
	if err != nil {
		t.Fatal(err)
	}
	return aggregate.Aggregate(snap.Records, aggregate.Default(fixedNow, aggregate.DefaultInboxFolders)...)
}

func newGen(store storage.Provider, now time.Time) *Generator {
	return New(store, DefaultOptions(), discard, WithClock(func() time.Time { return now }))
}

func TestAll_WritesArtifacts(t *testing.T) {
	root, store := testutil.TestTree(t, sampleTree())
	report, err := newGen(store, fixedNow).All(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Fatalf("failures: %v", report.Failures)
	}
	// tags: auth, go plus the dashboard
	if len(report.Written) != 3 {
		t.Errorf("written = %v", report.Written)
	}

	page := testutil.ReadFile(t, root, "tags/go.md")
	for _, want := range []string{
		"type: tag-index\n",
		"tag: go\n",
		"generated: 2026-10-18 09:30\n",
		"# Go\n",
		"**3 documents** with this tag.",
		"## Knowledge\n\n- [[knowledge/go/generics|Generics]]",
		"## Projects\n\n- [[projects/viewer/README|Viewer]]",
		"## Inbox\n\n_None_",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("tag page missing %q:\n%s", want, page)
		}
	}
	if strings.Count(page, "generated:") != 1 {
		t.Errorf("expected exactly one generated line:\n%s", page)
	}

	dash := testutil.ReadFile(t, root, "publish-dashboard.md")
	for _, want := range []string{
		"type: dashboard\n",
		`| [[tasks/fix-login\|Fix Login]] | active |`,
		`| [[tasks/wait-vendor\|Wait Vendor]] | vendor, legal |`,
		`| [[reminders/call\|Call]] | 2026-10-18 | due-today |`,
		`| [[projects/viewer/README\|Viewer]] | active | go |`,
		`| [[knowledge/go/generics\|Generics]] | 2026-09-01 | go |`,
		"- [[inbox/ideas/idea|Idea]]",
		`| [[tasks/completed/ship\|Ship]] | 2026-10-01 |`,
	} {
		if !strings.Contains(dash, want) {
			t.Errorf("dashboard missing %q:\n%s", want, dash)
		}
	}
}

func TestAll_SecondRunWritesNothing(t *testing.T) {
	root, store := testutil.TestTree(t, sampleTree())
	res := aggregateTree(t, root)
	if _, err := newGen(store, fixedNow).All(context.Background(), res); err != nil {
		t.Fatal(err)
	}
	before := testutil.ReadFile(t, root, "tags/go.md")

	later := fixedNow.Add(3 * time.Hour)
	report, err := newGen(store, later).All(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if report.Changed() {
		t.Errorf("second run changed files: written=%v removed=%v", report.Written, report.Removed)
	}
	if len(report.Unchanged) != 3 {
		t.Errorf("unchanged = %v", report.Unchanged)
	}
	if after := testutil.ReadFile(t, root, "tags/go.md"); after != before {
		t.Error("unchanged artifact must keep its original generated line")
	}
}

func TestTagPages_DistinctFileNamesForSimilarTags(t *testing.T) {
	root, store := testutil.TestTree(t, testutil.Files{
		"knowledge/a.md": testutil.Doc("", "tags: [lang/go]"),
		"knowledge/b.md": testutil.Doc("", "tags: [lang-go]"),
		"knowledge/c.md": testutil.Doc("", "tags: [\"50%\"]"),
	})
	gen := newGen(store, fixedNow)
	report, err := gen.TagPages(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"tags/50%25.md", "tags/lang%2Fgo.md", "tags/lang-go.md"}
	got := slices.Sorted(slices.Values(report.Written))
	if !slices.Equal(got, want) {
		t.Fatalf("written = %v, want %v", got, want)
	}
	if p := gen.TagPagePath("lang/go"); p != "tags/lang%2Fgo.md" {
		t.Errorf("TagPagePath(lang/go) = %q", p)
	}
	if body := testutil.ReadFile(t, root, "tags/lang%2Fgo.md"); !strings.Contains(body, "[[knowledge/a|") {
		t.Errorf("lang/go page does not list its document:\n%s", body)
	}

	again, err := newGen(store, fixedNow.Add(time.Hour)).TagPages(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if again.Changed() {
		t.Errorf("second run changed files: written=%v removed=%v", again.Written, again.Removed)
	}
	if len(again.Unchanged) != 3 {
		t.Errorf("unchanged = %v", again.Unchanged)
	}
}

func TestTagPages_RewritesOnChange(t *testing.T) {
	root, store := testutil.TestTree(t, sampleTree())
	if _, err := newGen(store, fixedNow).TagPages(context.Background(), aggregateTree(t, root)); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, root, "knowledge/new.md", testutil.Doc("", "tags: [auth]"))

	report, err := newGen(store, fixedNow).TagPages(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Written) != 1 || report.Written[0] != "tags/auth.md" {
		t.Errorf("written = %v, want only tags/auth.md", report.Written)
	}
}

func TestTagPages_OrphanCleanup(t *testing.T) {
	root, store := testutil.TestTree(t, sampleTree())
	testutil.WriteFile(t, root, "tags/handwritten.md", "# My notes about tags\n")
	testutil.WriteFile(t, root, "tags/other-type.md", testutil.Doc("", "type: knowledge", "tag: gone"))
	if _, err := newGen(store, fixedNow).TagPages(context.Background(), aggregateTree(t, root)); err != nil {
		t.Fatal(err)
	}

	// Drop the auth tag from its only document.
	testutil.WriteFile(t, root, "tasks/fix-login.md", testutil.Doc("# Fix Login\n", "type: task", "status: active", "tags: [go]"))
	report, err := newGen(store, fixedNow).TagPages(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Removed) != 1 || report.Removed[0] != "tags/auth.md" {
		t.Errorf("removed = %v, want [tags/auth.md]", report.Removed)
	}
	for _, keep := range []string{"tags/go.md", "tags/handwritten.md", "tags/other-type.md"} {
		if _, err := os.Stat(filepath.Join(root, keep)); err != nil {
			t.Errorf("%s must survive: %v", keep, err)
		}
	}
}

func TestTagPages_CleanupWhenNoTagsRemain(t *testing.T) {
	root, store := testutil.TestTree(t, testutil.Files{"knowledge/a.md": testutil.Doc("", "tags: [solo]")})
	if _, err := newGen(store, fixedNow).TagPages(context.Background(), aggregateTree(t, root)); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, root, "knowledge/a.md", "untagged")
	report, err := newGen(store, fixedNow).TagPages(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Removed) != 1 {
		t.Errorf("removed = %v", report.Removed)
	}
}

type failingStore struct {
	storage.Provider
}

func (failingStore) Write(string, []byte) error { return errors.New("disk full") }

func TestAll_WriteFailureRecorded(t *testing.T) {
	root, store := testutil.TestTree(t, sampleTree())
	report, err := newGen(failingStore{store}, fixedNow).All(context.Background(), aggregateTree(t, root))
	if err != nil {
		t.Fatalf("write failures must not abort the pass: %v", err)
	}
	if got := apperr.Count(report.Failures, apperr.ErrWriteFailure); got != 3 {
		t.Errorf("failures = %d, want 3", got)
	}
	if len(report.Written) != 0 {
		t.Errorf("written = %v", report.Written)
	}
}

func TestDashboard_EmptyPlaceholders(t *testing.T) {
	root, store := testutil.TestTree(t, testutil.Files{})
	if _, err := newGen(store, fixedNow).Dashboard(context.Background(), aggregateTree(t, root)); err != nil {
		t.Fatal(err)
	}
	dash := testutil.ReadFile(t, root, "publish-dashboard.md")
	for _, want := range []string{
		"*No active tasks*", "*No blocked tasks*", "*No due reminders*", "*No active projects*",
		"*No knowledge documents*", "*Inbox empty*", "*No completed tasks*",
	} {
		if !strings.Contains(dash, want) {
			t.Errorf("dashboard missing placeholder %q", want)
		}
	}
}

func TestWikilink_TableEscape(t *testing.T) {
	r := models.Record{
		Path:     "tasks/a.md",
		Metadata: models.Metadata{"title": models.String("A | B")},
	}
	if got := wikilink(r, true); got != `[[tasks/a\|A \| B]]` {
		t.Errorf("wikilink = %q", got)
	}
	if got := wikilink(r, false); got != "[[tasks/a|A | B]]" {
		t.Errorf("wikilink = %q", got)
	}
}
