package aggregate

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/orgstate/internal/models"
)

// Policy adds one family of buckets to a Result.
type Policy interface {
	Apply(records []models.Record, into *Result)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(records []models.Record, into *Result)

func (f PolicyFunc) Apply(records []models.Record, into *Result) { f(records, into) }

// Aggregate runs every policy over records and returns the combined result.
func Aggregate(records []models.Record, policies ...Policy) *Result {
	res := newResult()
	for _, p := range policies {
		p.Apply(records, res)
	}
	return res
}

// Bucket prefixes.
const (
	PrefixTasks     = "tasks"
	PrefixProjects  = "projects"
	PrefixReminders = "reminders"
	PrefixTags      = "tags"
	PrefixInbox     = "inbox"
	PrefixKnowledge = "knowledge"
	PrefixKind      = "kind"
)

// Task statuses known to every consumer. They always exist as buckets.
var TaskStatuses = []string{"active", "blocked", "review", "backlog", "incubating", "paused", "complete"}

// ProjectStatuses are the project buckets that always exist.
var ProjectStatuses = []string{"active", "paused", "complete"}

// taskFolders maps tasks/<folder>/ to the status implied by filing a task there.
var taskFolders = map[string]string{
	"review":     "review",
	"backlog":    "backlog",
	"incubating": "incubating",
	"paused":     "paused",
	"completed":  "complete",
}

// StatusOptions configures ByStatus.
type StatusOptions struct {
	Kind    models.Kind
	Prefix  string
	Default string
	Known   []string
	// Folders maps a subfolder of Dir to the status assumed when the record
	// has none.
	Dir     string
	Folders map[string]string
}

type byStatus struct{ opts StatusOptions }

// ByStatus groups records of one kind by their status field. Unrecognized
// statuses get their own bucket.
func ByStatus(opts StatusOptions) Policy { return byStatus{opts: opts} }

// TaskStatus is ByStatus preconfigured for tasks.
func TaskStatus() Policy {
	return ByStatus(StatusOptions{
		Kind:    models.KindTask,
		Prefix:  PrefixTasks,
		Default: "active",
		Known:   TaskStatuses,
		Dir:     "tasks",
		Folders: taskFolders,
	})
}

// ProjectStatus is ByStatus preconfigured for projects.
func ProjectStatus() Policy {
	return ByStatus(StatusOptions{
		Kind:    models.KindProject,
		Prefix:  PrefixProjects,
		Default: "active",
		Known:   ProjectStatuses,
	})
}

func (p byStatus) Apply(records []models.Record, into *Result) {
	for _, s := range p.opts.Known {
		into.ensure(p.opts.Prefix + "." + s)
	}
	touched := make(map[string]struct{})
	for _, rec := range records {
		if rec.Kind != p.opts.Kind {
			continue
		}
		status := strings.ToLower(rec.Status(""))
		if status == "" {
			status = p.folderStatus(rec)
		}
		name := p.opts.Prefix + "." + status
		into.add(name, rec)
		touched[name] = struct{}{}
	}
	for name := range touched {
		into.sortBucket(name, byPath)
	}
}

func (p byStatus) folderStatus(rec models.Record) string {
	if p.opts.Dir != "" {
		if s, ok := p.opts.Folders[subfolder(rec, p.opts.Dir)]; ok {
			return s
		}
	}
	return p.opts.Default
}

// ByDueWindow classifies reminders relative to now. Each window bucket is
// sorted by effective due time with undated reminders last.
func ByDueWindow(now time.Time) Policy {
	return PolicyFunc(func(records []models.Record, into *Result) {
		for _, w := range Windows {
			into.ensure(PrefixReminders + "." + string(w))
		}
		for _, rec := range records {
			if rec.Kind != models.KindReminder {
				continue
			}
			into.add(PrefixReminders+"."+string(Classify(rec, now)), rec)
		}
		loc := now.Location()
		for _, w := range Windows {
			into.sortBucket(PrefixReminders+"."+string(w), func(a, b models.Record) int {
				return dueKey(a, loc).Compare(dueKey(b, loc))
			})
		}
	})
}

// undated sorts after every real timestamp.
var undated = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

func dueKey(rec models.Record, loc *time.Location) time.Time {
	if t, ok := DueTime(rec, loc); ok {
		return t
	}
	return undated
}

// ByTag builds the tag index across all kinds. A record with N tags lands in
// N buckets.
func ByTag() Policy {
	return PolicyFunc(func(records []models.Record, into *Result) {
		touched := make(map[string]struct{})
		for _, rec := range records {
			for _, tag := range rec.Tags {
				name := PrefixTags + "." + tag
				into.add(name, rec)
				touched[name] = struct{}{}
			}
		}
		for name := range touched {
			into.sortBucket(name, byPath)
		}
	})
}

// CategoryOther collects inbox items outside any mapped folder.
const CategoryOther = "other"

// DefaultInboxFolders maps inbox subfolders to categories.
var DefaultInboxFolders = map[string]string{
	"emails":         "email",
	"tickets":        "ticket",
	"ideas":          "idea",
	"decisions":      "decision",
	"investigations": "investigation",
	"captures":       "capture",
}

// InboxCategories returns the categories of folders plus CategoryOther, in
// sorted order with other last.
func InboxCategories(folders map[string]string) []string {
	var cats []string
	for _, c := range folders {
		if !slices.Contains(cats, c) {
			cats = append(cats, c)
		}
	}
	slices.Sort(cats)
	return append(cats, CategoryOther)
}

// ByInboxCategory groups inbox items by their first subfolder under inbox/.
func ByInboxCategory(folders map[string]string) Policy {
	return PolicyFunc(func(records []models.Record, into *Result) {
		for _, c := range InboxCategories(folders) {
			into.ensure(PrefixInbox + "." + c)
		}
		for _, rec := range records {
			if rec.Kind != models.KindInbox {
				continue
			}
			cat := CategoryOther
			if sub := subfolder(rec, "inbox"); sub != "" {
				if c, ok := folders[sub]; ok {
					cat = c
				}
			}
			into.add(PrefixInbox+"."+cat, rec)
		}
		for _, c := range InboxCategories(folders) {
			into.sortBucket(PrefixInbox+"."+c, byPath)
		}
	})
}

// KnowledgeRoot is the bucket key for files directly under knowledge/. It
// contains a slash, so no folder can claim it.
const KnowledgeRoot = "/"

// ByKnowledgeFolder groups knowledge records by their first subfolder.
func ByKnowledgeFolder() Policy {
	return PolicyFunc(func(records []models.Record, into *Result) {
		into.ensure(PrefixKnowledge + "." + KnowledgeRoot)
		touched := map[string]struct{}{PrefixKnowledge + "." + KnowledgeRoot: {}}
		for _, rec := range records {
			if rec.Kind != models.KindKnowledge || !strings.HasPrefix(rec.Path, "knowledge/") {
				continue
			}
			folder := subfolder(rec, "knowledge")
			if folder == "" {
				folder = KnowledgeRoot
			}
			name := PrefixKnowledge + "." + folder
			into.add(name, rec)
			touched[name] = struct{}{}
		}
		for name := range touched {
			into.sortBucket(name, byPath)
		}
	})
}

// ByKind groups every record by kind, most recently updated first.
func ByKind() Policy {
	return PolicyFunc(func(records []models.Record, into *Result) {
		for _, k := range models.Kinds {
			into.ensure(PrefixKind + "." + string(k))
		}
		for _, rec := range records {
			into.add(PrefixKind+"."+string(rec.Kind), rec)
		}
		for _, k := range models.Kinds {
			into.sortBucket(PrefixKind+"."+string(k), func(a, b models.Record) int {
				return Recency(b).Compare(Recency(a))
			})
		}
	})
}

// Recency is the "updated" date, else "created", else the file mtime.
func Recency(rec models.Record) time.Time {
	for _, key := range []string{"updated", "created"} {
		if t, _, ok := ParseTime(rec.Metadata.Str(key), time.UTC); ok {
			return t
		}
	}
	return rec.ModifiedAt
}

// Default returns the policy set consumed by the generators and hooks.
func Default(now time.Time, inboxFolders map[string]string) []Policy {
	return []Policy{
		TaskStatus(),
		ProjectStatus(),
		ByDueWindow(now),
		ByTag(),
		ByInboxCategory(inboxFolders),
		ByKnowledgeFolder(),
		ByKind(),
	}
}

// subfolder returns the directory directly under top that holds rec, or ""
// when rec sits at top's root.
func subfolder(rec models.Record, top string) string {
	rest, ok := strings.CutPrefix(rec.Dir(), top+"/")
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(rest, "/")
	return first
}
