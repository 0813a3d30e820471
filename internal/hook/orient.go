package hook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/parser"
)

// OrientOptions configures the orientation summary.
type OrientOptions struct {
	Root          string
	ReminderLimit int
	VoiceLines    int
	InboxFolders  map[string]string
}

// DefaultOrientOptions returns the standard orientation limits.
func DefaultOrientOptions(root string) OrientOptions {
	return OrientOptions{
		Root:          root,
		ReminderLimit: 5,
		VoiceLines:    25,
		InboxFolders:  aggregate.DefaultInboxFolders,
	}
}

var inboxLabels = map[string]string{
	"email":                 "Pending Emails",
	"ticket":                "Pending Tickets",
	"idea":                  "Ideas",
	"decision":              "Decisions",
	"investigation":         "Investigations",
	"capture":               "Captures",
	aggregate.CategoryOther: "Other",
}

// Orient renders the session-start summary. ok is false when orientation is
// suppressed: a resumed session or a missing root.
func Orient(ctx context.Context, in Input, opts OrientOptions, res *aggregate.Result) (string, bool) {
	if ctx.Err() != nil || in.Source == SourceResume {
		return "", false
	}
	if info, err := os.Stat(opts.Root); err != nil || !info.IsDir() {
		return "", false
	}

	var b strings.Builder
	b.WriteString("<session-context source=\"SessionStart hook\">\n")
	b.WriteString("## Auto-loaded Orientation\n\n")
	b.WriteString("## Current State\n\n")

	writeTasks(&b, res)
	writeCurrentProjects(&b, opts.Root)
	writeKnowledge(&b, res)
	writeInbox(&b, res, opts.InboxFolders)
	writeReminders(&b, res, opts.ReminderLimit)
	writeVoice(&b, opts.Root, opts.VoiceLines)

	b.WriteString("</session-context>\n")
	return b.String(), true
}

func writeTasks(b *strings.Builder, res *aggregate.Result) {
	b.WriteString("### Active Tasks\n")
	active := res.Bucket("tasks.active")
	for _, t := range active {
		tags := ""
		if len(t.Tags) > 0 {
			tags = " [" + strings.Join(t.Tags, ", ") + "]"
		}
		fmt.Fprintf(b, "- **%s**%s - See `%s`\n", t.Stem(), tags, t.Path)
	}
	if len(active) == 0 {
		b.WriteString("_No active tasks_\n")
	}
	b.WriteString("\n")

	if blocked := res.Bucket("tasks.blocked"); len(blocked) > 0 {
		b.WriteString("### Blocked Tasks\n")
		for _, t := range blocked {
			by := strings.Join(t.Metadata.Get("blocked-by").Strings(), ", ")
			if by == "" {
				by = "unknown"
			}
			fmt.Fprintf(b, "- **%s** - blocked by: %s\n", t.Stem(), by)
		}
		b.WriteString("\n")
	}

	if review := res.Bucket("tasks.review"); len(review) > 0 {
		b.WriteString("### Tasks Needing Review\n")
		for _, t := range review {
			need := t.Metadata.Str("review-needed")
			if need == "" {
				need = "decision needed"
			}
			fmt.Fprintf(b, "- **%s** - %s\n", t.Stem(), need)
		}
		b.WriteString("\n")
	}

	backlog, incubating, paused := res.Len("tasks.backlog"), res.Len("tasks.incubating"), res.Len("tasks.paused")
	if backlog+incubating+paused > 0 {
		fmt.Fprintf(b, "**Other:** %d backlog, %d incubating, %d paused\n\n", backlog, incubating, paused)
	}
}

func writeCurrentProjects(b *strings.Builder, root string) {
	data, err := os.ReadFile(filepath.Join(root, "context", "current-state.md"))
	if err != nil {
		return
	}
	sec, ok := Section(string(data), "Active Projects")
	if !ok {
		return
	}
	b.WriteString("### Active Projects\n")
	b.WriteString(strings.TrimSpace(sec))
	b.WriteString("\n\n")
}

func writeKnowledge(b *strings.Builder, res *aggregate.Result) {
	counts := res.Counts(aggregate.PrefixKnowledge)
	rootCount := counts[aggregate.KnowledgeRoot]
	delete(counts, aggregate.KnowledgeRoot)
	if len(counts) == 0 {
		return
	}
	b.WriteString("### Knowledge Base\n")
	b.WriteString("See `knowledge/README.md` for full index.\n\n")
	b.WriteString("| Folder | Files |\n|--------|-------|\n")
	for _, folder := range res.Keys(aggregate.PrefixKnowledge) {
		if n, ok := counts[folder]; ok && n > 0 {
			fmt.Fprintf(b, "| `%s/` | %d |\n", folder, n)
		}
	}
	if rootCount > 0 {
		fmt.Fprintf(b, "| *(root)* | %d |\n", rootCount)
	}
	b.WriteString("\n")
}

func writeInbox(b *strings.Builder, res *aggregate.Result, folders map[string]string) {
	cats := aggregate.InboxCategories(folders)
	total := 0
	for _, c := range cats {
		total += res.Len(aggregate.PrefixInbox + "." + c)
	}
	if total == 0 {
		return
	}
	b.WriteString("### Inbox\n")
	for _, c := range cats {
		n := res.Len(aggregate.PrefixInbox + "." + c)
		if n == 0 {
			continue
		}
		label, ok := inboxLabels[c]
		if !ok {
			label = parser.Humanize(c)
		}
		fmt.Fprintf(b, "**%s:** %d\n", label, n)
	}
	b.WriteString("\n")
}

func writeReminders(b *strings.Builder, res *aggregate.Result, limit int) {
	overdue := res.Bucket(aggregate.PrefixReminders + "." + string(aggregate.Overdue))
	today := res.Bucket(aggregate.PrefixReminders + "." + string(aggregate.DueToday))
	soon := res.Len(aggregate.PrefixReminders + "." + string(aggregate.DueSoon))
	if len(overdue)+len(today) == 0 {
		if soon > 0 {
			fmt.Fprintf(b, "**Due soon:** %d reminder(s) in the next 24 hours\n\n", soon)
		}
		return
	}

	fmt.Fprintf(b, "### ACTION REQUIRED: %d Due Reminder(s)\n\n", len(overdue)+len(today))
	if len(overdue) > 0 {
		b.WriteString("**Overdue:**\n")
		for _, r := range overdue[:min(len(overdue), limit)] {
			at := r.Metadata.Str(aggregate.DueField(r))
			if at == "" {
				at = "unknown"
			}
			fmt.Fprintf(b, "- [%s] **%s**\n", at, r.Stem())
		}
		b.WriteString("\n")
	}
	if len(today) > 0 {
		b.WriteString("**Due Today:**\n")
		for _, r := range today[:min(len(today), limit)] {
			fmt.Fprintf(b, "- [%s] **%s**\n", clockPart(r), r.Stem())
		}
		b.WriteString("\n")
	}
	if soon > 0 {
		fmt.Fprintf(b, "**Due soon:** %d more in the next 24 hours\n\n", soon)
	}
	b.WriteString("Use `org_reminder_list` to see all reminders.\n\n")
}

// clockPart returns HH:MM of a timed due value, or "" for a plain date.
func clockPart(r models.Record) string {
	at := r.Metadata.Str(aggregate.DueField(r))
	_, after, found := strings.Cut(at, "T")
	if !found {
		_, after, found = strings.Cut(at, " ")
	}
	if !found || len(after) < 5 {
		return ""
	}
	return after[:5]
}

func writeVoice(b *strings.Builder, root string, maxLines int) {
	data, err := os.ReadFile(filepath.Join(root, "context", "voice.md"))
	if err != nil {
		return
	}
	sec, ok := Section(string(data), "How to Collaborate")
	if !ok {
		return
	}
	lines := strings.Split("## How to Collaborate\n"+sec, "\n")
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	b.WriteString("### Collaboration Style\n\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")
}
