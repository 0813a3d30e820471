package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/orgstate/internal/generator"
	"github.com/starford/orgstate/internal/orgservice"
	"github.com/starford/orgstate/internal/scanner"
	"github.com/starford/orgstate/internal/testutil"
)

func testServer(t *testing.T) (*Server, string) {
	t.Helper()
	root, store := testutil.TestTree(t, testutil.Files{
		"tasks/fix-login.md": testutil.Doc("# Fix login\nSee [[knowledge/auth]].\n", "status: active", "tags: [auth]"),
		"knowledge/auth.md":  testutil.Doc("# Auth\nTokens and sessions.\n", "tags: auth"),
		"reminders/late.md":  testutil.Doc("# Late\n", "remind-at: 2026-10-17T09:00"),
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	svc := orgservice.New(store, orgservice.Options{
		Scan:     scanner.DefaultOptions(root),
		Generate: generator.DefaultOptions(),
	}, logger, orgservice.WithClock(func() time.Time { return now }))
	return New(svc, "test"), root
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"org_state":             srv.orgState,
		"org_bucket":            srv.orgBucket,
		"org_search":            srv.orgSearch,
		"org_tag_stats":         srv.orgTagStats,
		"org_backlinks":         srv.orgBacklinks,
		"org_reminder_list":     srv.reminderList,
		"org_reminder_create":   srv.reminderCreate,
		"org_reminder_update":   srv.reminderUpdate,
		"org_reminder_complete": srv.reminderComplete,
		"org_reminder_dismiss":  srv.reminderDismiss,
		"org_reminder_snooze":   srv.reminderSnooze,
		"org_generate":          srv.orgGenerate,
		"org_format_contract":   srv.formatContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestOrgState(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "org_state", map[string]any{})
	if r.IsError {
		t.Fatalf("error: %s", resultText(r))
	}
	var st orgservice.State
	if err := json.Unmarshal([]byte(resultText(r)), &st); err != nil {
		t.Fatal(err)
	}
	if st.Records != 3 || st.Buckets["reminders.overdue"] != 1 {
		t.Errorf("state = %+v", st)
	}
}

func TestOrgBucket(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "org_bucket", map[string]any{"name": "tags.auth"})
	if text := resultText(r); text != "knowledge/auth.md\tAuth\ntasks/fix-login.md\tFix login" {
		t.Errorf("bucket = %q", text)
	}
	if r := callTool(t, srv, "org_bucket", map[string]any{"name": "tags.none"}); !r.IsError {
		t.Error("expected error for unknown bucket")
	}
}

func TestOrgSearchAndBacklinks(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "org_search", map[string]any{"query": "sessions", "limit": float64(5)})
	if !strings.Contains(resultText(r), `"path": "knowledge/auth.md"`) {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "org_backlinks", map[string]any{"path": "knowledge/auth.md"})
	if text := resultText(r); text != "tasks/fix-login.md" {
		t.Errorf("backlinks = %q", text)
	}
	r = callTool(t, srv, "org_backlinks", map[string]any{"path": "tasks/fix-login.md"})
	if text := resultText(r); text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestOrgSearch_MissingQuery(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "org_search", map[string]any{}); !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestOrgTagStats(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "org_tag_stats", map[string]any{})
	var stats []struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &stats); err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Tag != "auth" || stats[0].Count != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestReminderLifecycle(t *testing.T) {
	srv, root := testServer(t)

	r := callTool(t, srv, "org_reminder_create", map[string]any{
		"title":    "Renew passport",
		"remindAt": "2026-10-19T09:00",
		"tags":     []any{"Admin"},
	})
	if r.IsError {
		t.Fatalf("create: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"path": "reminders/renew-passport.md"`) {
		t.Errorf("create = %s", resultText(r))
	}
	if !strings.Contains(testutil.ReadFile(t, root, "reminders/renew-passport.md"), "tags: [admin]") {
		t.Error("tags not written")
	}

	r = callTool(t, srv, "org_reminder_snooze", map[string]any{"path": "reminders/renew-passport.md", "until": "2026-10-22"})
	if r.IsError {
		t.Fatalf("snooze: %s", resultText(r))
	}

	r = callTool(t, srv, "org_reminder_list", map[string]any{"status": "snoozed"})
	var list struct {
		Count     int `json:"count"`
		Reminders []struct {
			Path   string `json:"path"`
			Window string `json:"window"`
		} `json:"reminders"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if list.Count != 1 || list.Reminders[0].Window != "upcoming" {
		t.Errorf("list = %+v", list)
	}

	r = callTool(t, srv, "org_reminder_complete", map[string]any{"path": "reminders/renew-passport.md"})
	if !strings.Contains(resultText(r), `"newPath": "reminders/completed/renew-passport.md"`) {
		t.Errorf("complete = %s", resultText(r))
	}

	r = callTool(t, srv, "org_reminder_dismiss", map[string]any{"path": "reminders/late.md"})
	if r.IsError {
		t.Fatalf("dismiss: %s", resultText(r))
	}
	if !strings.Contains(testutil.ReadFile(t, root, "reminders/completed/late.md"), "status: dismissed") {
		t.Error("late reminder not dismissed")
	}
}

func TestReminderUpdate(t *testing.T) {
	srv, root := testServer(t)

	r := callTool(t, srv, "org_reminder_update", map[string]any{
		"path":     "reminders/late.md",
		"remindAt": "2026-10-21",
		"repeat":   "monthly",
		"addTags":  []any{"admin", "Bills"},
	})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	content := testutil.ReadFile(t, root, "reminders/late.md")
	for _, want := range []string{"status: ongoing\n", "remind-at: 2026-10-21\n", "repeat: monthly\n", "tags: [admin, bills]\n"} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}

	r = callTool(t, srv, "org_reminder_update", map[string]any{
		"path":       "reminders/late.md",
		"repeat":     "none",
		"removeTags": []any{"admin"},
	})
	if r.IsError {
		t.Fatalf("update: %s", resultText(r))
	}
	content = testutil.ReadFile(t, root, "reminders/late.md")
	if strings.Contains(content, "monthly") || !strings.Contains(content, "status: pending\n") || !strings.Contains(content, "tags: [bills]\n") {
		t.Errorf("content = %s", content)
	}

	if r := callTool(t, srv, "org_reminder_update", map[string]any{"path": "reminders/late.md"}); !r.IsError {
		t.Error("expected error when nothing changes")
	}
	if r := callTool(t, srv, "org_reminder_update", map[string]any{"path": "reminders/late.md", "repeatUntil": "never"}); !r.IsError {
		t.Error("expected error for bad repeatUntil")
	}
}

func TestReminderCreate_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "org_reminder_create", map[string]any{"title": "x", "remindAt": "someday"})
	if !r.IsError {
		t.Error("expected error for bad remindAt")
	}
	r = callTool(t, srv, "org_reminder_create", map[string]any{"title": "x"})
	if !r.IsError {
		t.Error("expected error for missing remindAt")
	}
}

func TestReminderComplete_Missing(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "org_reminder_complete", map[string]any{"path": "reminders/nope.md"}); !r.IsError {
		t.Error("expected error for missing reminder")
	}
}

func TestOrgGenerate(t *testing.T) {
	srv, root := testServer(t)
	r := callTool(t, srv, "org_generate", map[string]any{})
	if !strings.Contains(resultText(r), `"tags/auth.md"`) {
		t.Errorf("generate = %s", resultText(r))
	}
	if !strings.Contains(testutil.ReadFile(t, root, "publish-dashboard.md"), "type: dashboard") {
		t.Error("dashboard not written")
	}
	r = callTool(t, srv, "org_generate", map[string]any{})
	if !strings.Contains(resultText(r), `"written": []`) {
		t.Errorf("second generate = %s", resultText(r))
	}
}

func TestFormatContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "org_format_contract", nil)
	if !strings.Contains(resultText(r), "snoozed-until") {
		t.Error("contract should document reminder fields")
	}
	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
}
