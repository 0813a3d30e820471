package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/scanner"
	"github.com/starford/orgstate/internal/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func orgTree(t *testing.T) string {
	t.Helper()
	root, _ := testutil.TestTree(t, testutil.Files{
		"tasks/fix-login.md":       testutil.Doc("", "status: active", "tags: [auth]"),
		"tasks/vendor.md":          testutil.Doc("", "status: blocked", "blocked-by: [legal]"),
		"tasks/review/design.md":   testutil.Doc("", "review-needed: pick a layout"),
		"tasks/backlog/later.md":   testutil.Doc(""),
		"reminders/late.md":        testutil.Doc("", "remind-at: 2026-10-17T09:00:00Z"),
		"reminders/today.md":       testutil.Doc("", "status: snoozed", "snoozed-until: 2026-10-18T10:15"),
		"reminders/tomorrow.md":    testutil.Doc("", "remind-at: 2026-10-19T08:00"),
		"knowledge/go/generics.md": "# Generics\n",
		"knowledge/loose-note.md":  "x",
		"knowledge/glossary.md":    "x",
		"knowledge/README.md":      "# KB\n\n## Root Level\n- `glossary.md` cross-cutting\n\n## Other\n- `loose-note.md`\n",
		"inbox/emails/a.md":        "x",
		"inbox/stray.md":           "x",
		"context/current-state.md": "# State\n\n## Active Projects\n- viewer: shipping\n\n## Notes\nignored\n",
		"context/voice.md":         "# Voice\n\n## How to Collaborate\nBe direct.\nAsk when unsure.\n",
	})
	return root
}

func aggregateRoot(t *testing.T, root string) *aggregate.Result {
	t.Helper()
	snap, err := scanner.Scan(context.Background(), scanner.DefaultOptions(root), discard)
	if err != nil {
		t.Fatal(err)
	}
	return aggregate.Aggregate(snap.Records, aggregate.Default(now, aggregate.DefaultInboxFolders)...)
}

func writeTranscript(t *testing.T, lines int, tail string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := strings.Repeat("{\"type\":\"message\"}\n", lines) + tail
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDecodeInput(t *testing.T) {
	in, err := DecodeInput(context.Background(), strings.NewReader(`{"stop_hook_active":true,"transcript_path":"/t","source":"startup","extra":1}`))
	if err != nil {
		t.Fatal(err)
	}
	if !in.StopHookActive || in.TranscriptPath != "/t" || in.Source != "startup" {
		t.Errorf("input = %+v", in)
	}
}

func TestDecodeInput_EmptyIsAmbiguous(t *testing.T) {
	for _, raw := range []string{"", "not json", "[1,2]"} {
		in, err := DecodeInput(context.Background(), strings.NewReader(raw))
		if !errors.Is(err, apperr.ErrAmbiguousInput) {
			t.Errorf("%q: err = %v, want ErrAmbiguousInput", raw, err)
		}
		if in != (Input{}) {
			t.Errorf("%q: input = %+v, want zero", raw, in)
		}
	}
}

func TestDecodeInput_Timeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := DecodeInput(ctx, pr)
	if !IsAmbiguous(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestGate_StopHookActiveAlwaysPasses(t *testing.T) {
	root := orgTree(t)
	in := Input{StopHookActive: true, TranscriptPath: writeTranscript(t, 100, "")}
	if d := Gate(context.Background(), in, DefaultGateOptions(root), Findings{Overdue: 3}); d.Block {
		t.Error("stop_hook_active must pass")
	}
}

func TestGate_PassConditions(t *testing.T) {
	root := orgTree(t)
	opts := DefaultGateOptions(root)
	cases := map[string]Input{
		"no transcript":      {},
		"missing transcript": {TranscriptPath: filepath.Join(t.TempDir(), "none")},
		"trivial":            {TranscriptPath: writeTranscript(t, 14, "")},
		"sentinel":           {TranscriptPath: writeTranscript(t, 40, "all done. no MAINTENANCE needed\n")},
	}
	for name, in := range cases {
		if d := Gate(context.Background(), in, opts, Findings{}); d.Block {
			t.Errorf("%s: blocked, want pass", name)
		}
	}
	missing := DefaultGateOptions(filepath.Join(t.TempDir(), "gone"))
	if d := Gate(context.Background(), Input{TranscriptPath: writeTranscript(t, 40, "")}, missing, Findings{}); d.Block {
		t.Error("missing root: blocked, want pass")
	}
}

func TestGate_SentinelOutsideWindowBlocks(t *testing.T) {
	root := orgTree(t)
	p := writeTranscript(t, 0, "No maintenance needed\n"+strings.Repeat("{\"type\":\"message\"}\n", 200))
	if d := Gate(context.Background(), Input{TranscriptPath: p}, DefaultGateOptions(root), Findings{}); !d.Block {
		t.Error("an old sentinel must not release the gate")
	}
}

func TestGate_BlockWithFindings(t *testing.T) {
	root := orgTree(t)
	findings := CollectFindings(root, aggregateRoot(t, root))
	if len(findings.UnfiledKnowledge) != 1 || findings.UnfiledKnowledge[0] != "loose-note" {
		t.Errorf("unfiled = %v", findings.UnfiledKnowledge)
	}
	if findings.Overdue != 1 || findings.InboxPending != 2 {
		t.Errorf("findings = %+v", findings)
	}

	d := Gate(context.Background(), Input{TranscriptPath: writeTranscript(t, 30, "")}, DefaultGateOptions(root), findings)
	if !d.Block {
		t.Fatal("expected block")
	}
	for _, want := range []string{"MAINTENANCE VIGILANCE CHECK", "1 file(s) at knowledge root", "- loose-note", "**Overdue reminders:** 1", "**Unprocessed inbox items:** 2", `"No maintenance needed"`} {
		if !strings.Contains(d.Reason, want) {
			t.Errorf("reason missing %q", want)
		}
	}
}

func TestCollectFindings_FolderNamedRootIsFiled(t *testing.T) {
	root, _ := testutil.TestTree(t, testutil.Files{
		"knowledge/root/filed.md": "# Filed\n",
		"knowledge/stray.md":      "x",
	})
	findings := CollectFindings(root, aggregateRoot(t, root))
	if len(findings.UnfiledKnowledge) != 1 || findings.UnfiledKnowledge[0] != "stray" {
		t.Errorf("unfiled = %v, want [stray]", findings.UnfiledKnowledge)
	}

	var b strings.Builder
	writeKnowledge(&b, aggregateRoot(t, root))
	for _, want := range []string{"| `root/` | 1 |", "| *(root)* | 1 |"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("knowledge table missing %q:\n%s", want, b.String())
		}
	}
}

func TestWriteDecision_JSON(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code, err := WriteDecision(&stdout, &stderr, Decision{Block: true, Reason: "do it"}, ProtocolJSON)
	if err != nil || code != 0 {
		t.Fatalf("code = %d, err = %v", code, err)
	}
	var out map[string]string
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["decision"] != "block" || out["reason"] != "do it" {
		t.Errorf("out = %v", out)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestWriteDecision_ExitCode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code, err := WriteDecision(&stdout, &stderr, Decision{Block: true, Reason: "do it"}, ProtocolExitCode)
	if err != nil || code != ExitBlock {
		t.Fatalf("code = %d, err = %v", code, err)
	}
	if stdout.Len() != 0 || strings.TrimSpace(stderr.String()) != "do it" {
		t.Errorf("stdout = %q, stderr = %q", stdout.String(), stderr.String())
	}
}

func TestWriteDecision_PassIsSilent(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code, _ := WriteDecision(&stdout, &stderr, Pass, ProtocolJSON)
	if code != 0 || stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("pass must write nothing: code=%d stdout=%q", code, stdout.String())
	}
}

func TestOrient_ResumeSuppressed(t *testing.T) {
	root := orgTree(t)
	if _, ok := Orient(context.Background(), Input{Source: SourceResume}, DefaultOrientOptions(root), aggregateRoot(t, root)); ok {
		t.Error("resume must suppress orientation")
	}
	missing := DefaultOrientOptions(filepath.Join(t.TempDir(), "gone"))
	if _, ok := Orient(context.Background(), Input{}, missing, aggregateRoot(t, root)); ok {
		t.Error("missing root must suppress orientation")
	}
}

func TestOrient_Summary(t *testing.T) {
	root := orgTree(t)
	text, ok := Orient(context.Background(), Input{Source: "startup"}, DefaultOrientOptions(root), aggregateRoot(t, root))
	if !ok {
		t.Fatal("expected orientation")
	}
	for _, want := range []string{
		"<session-context source=\"SessionStart hook\">",
		"- **fix-login** [auth] - See `tasks/fix-login.md`",
		"- **vendor** - blocked by: legal",
		"- **design** - pick a layout",
		"**Other:** 1 backlog, 0 incubating, 0 paused",
		"### Active Projects\n- viewer: shipping\n",
		"| `go/` | 1 |",
		"| *(root)* | 2 |",
		"**Pending Emails:** 1",
		"**Other:** 1\n",
		"### ACTION REQUIRED: 2 Due Reminder(s)",
		"- [2026-10-17T09:00:00Z] **late**",
		"- [10:15] **today**",
		"**Due soon:** 1 more",
		"## How to Collaborate\nBe direct.",
		"</session-context>",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("orientation missing %q\n%s", want, text)
		}
	}
	if strings.Contains(text, "ignored") {
		t.Error("sections after Active Projects must not leak")
	}
}
