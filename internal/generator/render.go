package generator

import (
	"bytes"
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/parser"
)

var sectionLabels = map[models.Kind]string{
	models.KindKnowledge: "Knowledge",
	models.KindProject:   "Projects",
	models.KindTask:      "Tasks",
	models.KindReminder:  "Reminders",
	models.KindInbox:     "Inbox",
	models.KindUnknown:   "Other",
}

type tagSection struct {
	Label string
	Links []string
}

type tagPageData struct {
	Heading  string
	Count    int
	Sections []tagSection
}

func renderTagPage(tag string, records []models.Record) (string, error) {
	data := tagPageData{Heading: parser.Humanize(tag), Count: len(records)}
	for _, kind := range models.Kinds {
		var members []models.Record
		for _, r := range records {
			if r.Kind == kind {
				members = append(members, r)
			}
		}
		slices.SortFunc(members, func(a, b models.Record) int {
			return cmp.Or(strings.Compare(a.Stem(), b.Stem()), strings.Compare(a.Path, b.Path))
		})
		sec := tagSection{Label: sectionLabels[kind]}
		for _, r := range members {
			sec.Links = append(sec.Links, wikilink(r, false))
		}
		data.Sections = append(data.Sections, sec)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "tagpage.md.tmpl", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type row struct {
	Link      string
	Status    string
	Updated   string
	BlockedBy string
	Due       string
	Window    string
	Tags      string
	Completed string
}

type dashboardData struct {
	ActiveTasks     []row
	BlockedTasks    []row
	Reminders       []row
	ActiveProjects  []row
	RecentKnowledge []row
	Inbox           []row
	Completed       []row
}

func (g *Generator) dashboardData(res *aggregate.Result) dashboardData {
	var d dashboardData

	active := byRecency(res.Bucket("tasks.active"))
	for _, r := range active {
		d.ActiveTasks = append(d.ActiveTasks, row{
			Link:    wikilink(r, true),
			Status:  cell(r.Status("-")),
			Updated: formatDate(aggregate.Recency(r)),
		})
	}
	for _, r := range res.Bucket("tasks.blocked") {
		d.BlockedTasks = append(d.BlockedTasks, row{
			Link:      wikilink(r, true),
			BlockedBy: joinOr(r.Metadata.Get("blocked-by").Strings()),
		})
	}
	for _, w := range []aggregate.Window{aggregate.Overdue, aggregate.DueToday, aggregate.DueSoon} {
		for _, r := range res.Bucket(aggregate.PrefixReminders + "." + string(w)) {
			d.Reminders = append(d.Reminders, row{
				Link:   wikilink(r, true),
				Due:    cell(r.Metadata.Str(aggregate.DueField(r))),
				Window: string(w),
			})
		}
	}
	for _, r := range res.Bucket("projects.active") {
		d.ActiveProjects = append(d.ActiveProjects, row{
			Link:   wikilink(r, true),
			Status: cell(r.Status("-")),
			Tags:   joinOr(r.Tags),
		})
	}
	knowledge := res.Bucket(aggregate.PrefixKind + "." + string(models.KindKnowledge))
	for _, r := range knowledge[:min(len(knowledge), g.opts.RecentKnowledge)] {
		d.RecentKnowledge = append(d.RecentKnowledge, row{
			Link:    wikilink(r, true),
			Updated: formatDate(aggregate.Recency(r)),
			Tags:    joinOr(r.Tags),
		})
	}

	var inbox []models.Record
	for _, c := range res.Keys(aggregate.PrefixInbox) {
		inbox = append(inbox, res.Bucket(aggregate.PrefixInbox+"."+c)...)
	}
	slices.SortStableFunc(inbox, func(a, b models.Record) int {
		return cmp.Or(
			strings.Compare(dateKey(b.Metadata.Str("created")), dateKey(a.Metadata.Str("created"))),
			strings.Compare(a.Path, b.Path))
	})
	for _, r := range inbox {
		d.Inbox = append(d.Inbox, row{Link: wikilink(r, false)})
	}

	completed := slices.Concat(res.Bucket("tasks.complete"), res.Bucket("tasks.completed"))
	slices.SortStableFunc(completed, func(a, b models.Record) int {
		return cmp.Or(
			strings.Compare(dateKey(b.Metadata.Str("completed")), dateKey(a.Metadata.Str("completed"))),
			strings.Compare(a.Path, b.Path))
	})
	for _, r := range completed[:min(len(completed), g.opts.RecentCompleted)] {
		d.Completed = append(d.Completed, row{
			Link:      wikilink(r, true),
			Completed: cell(dateKey(r.Metadata.Str("completed"))),
		})
	}
	return d
}

// wikilink links to r by its extension-less path. Inside tables the alias
// separator is escaped so it does not split the cell.
func wikilink(r models.Record, inTable bool) string {
	target := strings.TrimSuffix(r.Path, ".md")
	title := strings.ReplaceAll(strings.ReplaceAll(r.DisplayTitle(), "[", ""), "]", "")
	if title == "" {
		return "[[" + target + "]]"
	}
	sep := "|"
	if inTable {
		sep = `\|`
		title = strings.ReplaceAll(title, "|", `\|`)
	}
	return "[[" + target + sep + title + "]]"
}

func byRecency(records []models.Record) []models.Record {
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b models.Record) int {
		return cmp.Or(aggregate.Recency(b).Compare(aggregate.Recency(a)), strings.Compare(a.Path, b.Path))
	})
	return out
}

func cell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "|", `\|`))
	if s == "" {
		return "-"
	}
	return s
}

func joinOr(items []string) string {
	return cell(strings.Join(items, ", "))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

// dateKey trims a timestamp to its date so string order equals date order.
func dateKey(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
