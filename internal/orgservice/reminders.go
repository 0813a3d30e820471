package orgservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/orgstate/internal/aggregate"
	"github.com/starford/orgstate/internal/apperr"
	"github.com/starford/orgstate/internal/models"
	"github.com/starford/orgstate/internal/parser"
)

const (
	remindersDir = "reminders"
	completedDir = "reminders/completed"

	fieldType        = "type"
	fieldStatus      = "status"
	fieldCreated     = "created"
	fieldRepeat      = "repeat"
	fieldRepeatUntil = "repeat-until"
	fieldCompleted   = "completed"
	fieldTags        = "tags"

	dayLayout = "2006-01-02"
)

var reminderOrder = []string{
	fieldType, fieldStatus, fieldCreated,
	aggregate.FieldRemindAt, fieldRepeat, fieldRepeatUntil,
	aggregate.FieldSnoozedUntil, fieldCompleted, fieldTags,
}

// Repeat schedules accepted on creation.
var RepeatSchedules = []string{"daily", "weekly", "monthly", "custom"}

// Reminder is the list view of one reminder document.
type Reminder struct {
	Path         string           `json:"path"`
	Title        string           `json:"title"`
	Status       string           `json:"status"`
	Window       aggregate.Window `json:"window"`
	RemindAt     string           `json:"remind_at,omitempty"`
	SnoozedUntil string           `json:"snoozed_until,omitempty"`
	Repeat       string           `json:"repeat,omitempty"`
	Tags         []string         `json:"tags"`
}

// NewReminder describes a reminder to create.
type NewReminder struct {
	Title       string   `json:"title"`
	RemindAt    string   `json:"remind_at"`
	Description string   `json:"description,omitempty"`
	Repeat      string   `json:"repeat,omitempty"`
	RepeatUntil string   `json:"repeat_until,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate checks required fields and timestamp formats.
func (n NewReminder) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required, validation.By(sluggable)),
		validation.Field(&n.RemindAt, validation.Required, validation.By(timestamp)),
		validation.Field(&n.Repeat, validation.In(anySlice(RepeatSchedules)...)),
		validation.Field(&n.RepeatUntil, validation.By(timestamp)),
	)
}

func timestamp(v any) error {
	v, _ = validation.Indirect(v)
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, _, ok := aggregate.ParseTime(s, time.UTC); !ok {
		return errors.New("must be an ISO date or date-time")
	}
	return nil
}

func sluggable(v any) error {
	s, _ := v.(string)
	if s != "" && Slugify(s) == "" {
		return errors.New("must contain letters or digits")
	}
	return nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Reminders lists reminder documents sorted by due time. A non-empty status
// keeps only reminders in that status.
func (s *Service) Reminders(ctx context.Context, status string) ([]Reminder, error) {
	snap, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var recs []models.Record
	for rec := range snap.All() {
		if rec.Kind != models.KindReminder {
			continue
		}
		if status != "" && rec.Status(aggregate.StatusPending) != status {
			continue
		}
		recs = append(recs, rec)
	}
	slices.SortStableFunc(recs, func(a, b models.Record) int {
		ta, oka := aggregate.DueTime(a, now.Location())
		tb, okb := aggregate.DueTime(b, now.Location())
		switch {
		case oka && okb && !ta.Equal(tb):
			return ta.Compare(tb)
		case oka != okb:
			if oka {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})

	out := make([]Reminder, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Reminder{
			Path:         rec.Path,
			Title:        rec.DisplayTitle(),
			Status:       rec.Status(aggregate.StatusPending),
			Window:       aggregate.Classify(rec, now),
			RemindAt:     rec.Metadata.Str(aggregate.FieldRemindAt),
			SnoozedUntil: rec.Metadata.Str(aggregate.FieldSnoozedUntil),
			Repeat:       rec.Metadata.Str(fieldRepeat),
			Tags:         nonNilSlice(rec.Tags),
		})
	}
	return out, nil
}

// CreateReminder writes reminders/<slug>.md and returns its path. A repeating
// reminder starts as ongoing, any other as pending.
func (s *Service) CreateReminder(ctx context.Context, n NewReminder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := n.Validate(); err != nil {
		return "", fmt.Errorf("orgservice: create reminder: %w: %v", apperr.ErrInvalid, err)
	}
	p := path.Join(remindersDir, Slugify(n.Title)+".md")

	status := aggregate.StatusPending
	if n.Repeat != "" {
		status = aggregate.StatusOngoing
	}
	meta := models.Metadata{
		fieldType:                   models.String(string(models.KindReminder)),
		fieldStatus:                 models.String(status),
		fieldCreated:                models.String(s.now().Format(dayLayout)),
		aggregate.FieldRemindAt:     models.String(n.RemindAt),
		fieldRepeat:                 optional(n.Repeat),
		fieldRepeatUntil:            optional(n.RepeatUntil),
		aggregate.FieldSnoozedUntil: models.Null(),
		fieldCompleted:              models.Null(),
		fieldTags:                   models.List(parser.NormalizeTags(models.List(n.Tags...))...),
	}
	body := "# " + strings.TrimSpace(n.Title) + "\n"
	if d := strings.TrimSpace(n.Description); d != "" {
		body += "\n" + d + "\n"
	}
	if err := s.store.Create(p, parser.Rewrite(meta, reminderOrder, body)); err != nil {
		return "", fmt.Errorf("orgservice: create reminder %s: %w", p, err)
	}
	s.logger.Info("reminder created", slog.String("path", p))
	return p, nil
}

// CompleteReminder marks a reminder completed and moves it under
// reminders/completed. It returns the new path.
func (s *Service) CompleteReminder(ctx context.Context, p string) (string, error) {
	return s.close(ctx, p, aggregate.StatusCompleted)
}

// DismissReminder marks a reminder dismissed and moves it under
// reminders/completed. It returns the new path.
func (s *Service) DismissReminder(ctx context.Context, p string) (string, error) {
	return s.close(ctx, p, aggregate.StatusDismissed)
}

func (s *Service) close(ctx context.Context, p, status string) (string, error) {
	meta, body, err := s.loadReminder(ctx, p)
	if err != nil {
		return "", err
	}
	meta[fieldStatus] = models.String(status)
	meta[fieldCompleted] = models.String(s.now().Format(dayLayout))
	content := parser.Rewrite(meta, reminderOrder, body)

	dest := path.Join(completedDir, path.Base(p))
	if dest == path.Clean(p) {
		if err := s.store.Write(p, content); err != nil {
			return "", fmt.Errorf("orgservice: %s reminder %s: %w", status, p, err)
		}
		return p, nil
	}
	if err := s.store.Move(p, dest, content); err != nil {
		return "", fmt.Errorf("orgservice: %s reminder %s: %w", status, p, err)
	}
	s.logger.Info("reminder closed",
		slog.String("path", p),
		slog.String("status", status),
		slog.String("moved_to", dest),
	)
	return dest, nil
}

// SnoozeReminder sets status snoozed and snoozed-until to until.
func (s *Service) SnoozeReminder(ctx context.Context, p, until string) error {
	err := validation.Validate(until, validation.Required, validation.By(timestamp))
	if err != nil {
		return fmt.Errorf("orgservice: snooze reminder %s: %w: until: %v", p, apperr.ErrInvalid, err)
	}
	meta, body, err := s.loadReminder(ctx, p)
	if err != nil {
		return err
	}
	meta[fieldStatus] = models.String(aggregate.StatusSnoozed)
	meta[aggregate.FieldSnoozedUntil] = models.String(strings.TrimSpace(until))
	if err := s.store.Write(p, parser.Rewrite(meta, reminderOrder, body)); err != nil {
		return fmt.Errorf("orgservice: snooze reminder %s: %w", p, err)
	}
	s.logger.Info("reminder snoozed", slog.String("path", p), slog.String("until", until))
	return nil
}

// ReminderUpdate lists the fields to change on an existing reminder. Nil
// pointers and empty strings leave a field as it is; a pointer to "" clears
// it. A non-nil Tags replaces the tag list before AddTags and RemoveTags
// apply.
type ReminderUpdate struct {
	RemindAt    string   `json:"remind_at,omitempty"`
	Repeat      *string  `json:"repeat,omitempty"`
	RepeatUntil *string  `json:"repeat_until,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	AddTags     []string `json:"add_tags,omitempty"`
	RemoveTags  []string `json:"remove_tags,omitempty"`
}

// Validate checks timestamp formats and the repeat schedule.
func (u ReminderUpdate) Validate() error {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.RemindAt, validation.By(timestamp)),
		validation.Field(&u.Repeat, validation.In(anySlice(RepeatSchedules)...)),
		validation.Field(&u.RepeatUntil, validation.By(timestamp)),
	)
	if err != nil {
		return err
	}
	if u.RemindAt == "" && u.Repeat == nil && u.RepeatUntil == nil &&
		u.Tags == nil && len(u.AddTags) == 0 && len(u.RemoveTags) == 0 {
		return errors.New("nothing to update")
	}
	return nil
}

// UpdateReminder rewrites the due time, repeat schedule or tags of the
// reminder at p. Setting a schedule on a pending reminder makes it ongoing;
// clearing the schedule of an ongoing one makes it pending again.
func (s *Service) UpdateReminder(ctx context.Context, p string, u ReminderUpdate) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("orgservice: update reminder %s: %w: %v", p, apperr.ErrInvalid, err)
	}
	meta, body, err := s.loadReminder(ctx, p)
	if err != nil {
		return err
	}

	if at := strings.TrimSpace(u.RemindAt); at != "" {
		meta[aggregate.FieldRemindAt] = models.String(at)
	}
	if u.Repeat != nil {
		repeat := optional(*u.Repeat)
		meta[fieldRepeat] = repeat
		status := meta.Str(fieldStatus)
		switch {
		case !repeat.IsNull() && (status == "" || status == aggregate.StatusPending):
			meta[fieldStatus] = models.String(aggregate.StatusOngoing)
		case repeat.IsNull() && status == aggregate.StatusOngoing:
			meta[fieldStatus] = models.String(aggregate.StatusPending)
		}
	}
	if u.RepeatUntil != nil {
		meta[fieldRepeatUntil] = optional(*u.RepeatUntil)
	}
	if u.Tags != nil || len(u.AddTags) > 0 || len(u.RemoveTags) > 0 {
		tags := parser.NormalizeTags(meta.Get(fieldTags))
		if u.Tags != nil {
			tags = parser.NormalizeTags(models.List(u.Tags...))
		}
		tags = parser.NormalizeTags(models.List(append(tags, u.AddTags...)...))
		drop := parser.NormalizeTags(models.List(u.RemoveTags...))
		tags = slices.DeleteFunc(tags, func(t string) bool { return slices.Contains(drop, t) })
		meta[fieldTags] = models.List(tags...)
	}

	if err := s.store.Write(p, parser.Rewrite(meta, reminderOrder, body)); err != nil {
		return fmt.Errorf("orgservice: update reminder %s: %w", p, err)
	}
	s.logger.Info("reminder updated", slog.String("path", p))
	return nil
}

// loadReminder reads p and returns a private copy of its metadata plus the
// body. Documents that are not reminders, or whose front-block cannot be
// parsed, are rejected with apperr.ErrInvalid.
func (s *Service) loadReminder(ctx context.Context, p string) (models.Metadata, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := s.store.Read(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("orgservice: reminder %s: %w", p, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("orgservice: reminder %s: %w", p, err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("orgservice: reminder %s: %w: %v", p, apperr.ErrInvalid, err)
	}
	kind, explicit := models.ParseKind(res.Metadata.Str(fieldType))
	inDir := strings.HasPrefix(path.Clean(p), remindersDir+"/")
	if (explicit && kind != models.KindReminder) || (!explicit && !inDir) {
		return nil, "", fmt.Errorf("orgservice: %s is not a reminder: %w", p, apperr.ErrInvalid)
	}
	return res.Metadata.Clone(), res.Body, nil
}

func optional(s string) models.Value {
	if strings.TrimSpace(s) == "" {
		return models.Null()
	}
	return models.String(strings.TrimSpace(s))
}
