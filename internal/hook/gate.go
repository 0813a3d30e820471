package hook

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/orgstate/internal/aggregate"
)

// GateOptions configures the maintenance gate.
type GateOptions struct {
	Root string
	// TrivialLines is the transcript length below which the gate passes.
	TrivialLines int
	// Sentinel, found in the transcript tail, lets the session stop.
	Sentinel string
	// RecentWindow is how many trailing transcript bytes are searched.
	RecentWindow int
}

// DefaultGateOptions returns the standard gate thresholds.
func DefaultGateOptions(root string) GateOptions {
	return GateOptions{
		Root:         root,
		TrivialLines: 15,
		Sentinel:     "No maintenance needed",
		RecentWindow: 2000,
	}
}

// Decision is the gate outcome.
type Decision struct {
	Block  bool   `json:"-"`
	Reason string `json:"reason,omitempty"`
}

// Pass lets the session stop.
var Pass = Decision{}

// Findings are live observations added to a blocking reason.
type Findings struct {
	UnfiledKnowledge []string
	Overdue          int
	InboxPending     int
}

// CollectFindings derives gate findings from an aggregation result.
// Knowledge files at the knowledge root count as unfiled unless
// knowledge/README.md lists them under "## Root Level".
func CollectFindings(root string, res *aggregate.Result) Findings {
	documented := documentedRootFiles(root)
	var f Findings
	for _, r := range res.Bucket(aggregate.PrefixKnowledge + "." + aggregate.KnowledgeRoot) {
		base := path.Base(r.Path)
		if _, ok := documented[base]; ok {
			continue
		}
		f.UnfiledKnowledge = append(f.UnfiledKnowledge, strings.TrimSuffix(base, ".md"))
	}
	f.Overdue = res.Len(aggregate.PrefixReminders + "." + string(aggregate.Overdue))
	for _, n := range res.Counts(aggregate.PrefixInbox) {
		f.InboxPending += n
	}
	return f
}

var backtickFileRe = regexp.MustCompile("`([^`]+\\.md)`")

func documentedRootFiles(root string) map[string]struct{} {
	out := make(map[string]struct{})
	data, err := os.ReadFile(filepath.Join(root, "knowledge", "README.md"))
	if err != nil {
		return out
	}
	sec, ok := Section(string(data), "Root Level")
	if !ok {
		return out
	}
	for _, m := range backtickFileRe.FindAllStringSubmatch(sec, -1) {
		out[m[1]] = struct{}{}
	}
	return out
}

// Gate decides whether the session may stop. It passes when the stop hook is
// already active, the transcript is missing or trivial, the sentinel appears
// near its end, or the org root does not exist. Otherwise it blocks with the
// maintenance checklist and findings.
func Gate(ctx context.Context, in Input, opts GateOptions, findings Findings) Decision {
	if ctx.Err() != nil || in.StopHookActive {
		return Pass
	}
	if in.TranscriptPath == "" {
		return Pass
	}
	data, err := os.ReadFile(in.TranscriptPath)
	if err != nil {
		return Pass
	}
	if strings.Count(string(data), "\n") < opts.TrivialLines {
		return Pass
	}
	tail := data
	if opts.RecentWindow > 0 && len(tail) > opts.RecentWindow {
		tail = tail[len(tail)-opts.RecentWindow:]
	}
	if opts.Sentinel != "" && strings.Contains(strings.ToLower(string(tail)), strings.ToLower(opts.Sentinel)) {
		return Pass
	}
	if info, err := os.Stat(opts.Root); err != nil || !info.IsDir() {
		return Pass
	}
	return Decision{Block: true, Reason: maintenanceReason(opts.Sentinel, findings)}
}

const checklist = `MAINTENANCE VIGILANCE CHECK

Before stopping, evaluate this session:

| Signal | Action if Present |
|--------|-------------------|
| New reusable insight/pattern | → knowledge/<subfolder>/<topic>.md |
| Project status changed | → Update context/current-state.md |
| New task identified | → tasks/<name>.md |
| Question worth preserving | → queries/<question>.md |
| Feature idea / future project | → inbox/ideas/<item>.md |
| Decision needed | → inbox/decisions/<item>.md |
| Bug to investigate | → inbox/investigations/<item>.md |
| Quick unsorted capture | → inbox/captures/<item>.md |
| Reminder resolved | → complete, dismiss or snooze it |
| KB file needs organization | → Move to appropriate subfolder |
`

func maintenanceReason(sentinel string, f Findings) string {
	var b strings.Builder
	b.WriteString(checklist)
	b.WriteString("\nIf ANY apply: perform the maintenance NOW.\n")
	fmt.Fprintf(&b, "If NONE apply: state %q and stop.\n", sentinel)
	b.WriteString("\nBe aggressive about capture - lost insights are unrecoverable.")

	if n := len(f.UnfiledKnowledge); n > 0 {
		shown := f.UnfiledKnowledge[:min(n, 5)]
		more := ""
		if n > 5 {
			more = "..."
		}
		fmt.Fprintf(&b, "\n\n**KB Organization Alert:** %d file(s) at knowledge root:\n- %s%s\n", n, strings.Join(shown, ", "), more)
		b.WriteString("→ Move to appropriate subfolder, OR\n")
		b.WriteString(`→ If truly cross-cutting, document in knowledge/README.md under "## Root Level"`)
	}
	if f.Overdue > 0 {
		fmt.Fprintf(&b, "\n\n**Overdue reminders:** %d", f.Overdue)
	}
	if f.InboxPending > 0 {
		fmt.Fprintf(&b, "\n\n**Unprocessed inbox items:** %d", f.InboxPending)
	}
	return b.String()
}

// Section returns the body of the "## heading" section of a markdown
// document, up to the next level-two heading.
func Section(content, heading string) (string, bool) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	marker := "## " + heading + "\n"
	var start int
	switch {
	case strings.HasPrefix(content, marker):
		start = len(marker)
	default:
		i := strings.Index(content, "\n"+marker)
		if i < 0 {
			return "", false
		}
		start = i + 1 + len(marker)
	}
	rest := content[start:]
	if end := strings.Index(rest, "\n## "); end >= 0 {
		rest = rest[:end]
	}
	return rest, true
}
