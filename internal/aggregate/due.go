package aggregate

import (
	"strings"
	"time"

	"github.com/starford/orgstate/internal/models"
)

// Window is the due-time classification of a reminder.
type Window string

const (
	Overdue  Window = "overdue"
	DueToday Window = "due-today"
	DueSoon  Window = "due-soon"
	Upcoming Window = "upcoming"
	Inactive Window = "inactive"
)

// Windows lists every window in display order.
var Windows = []Window{Overdue, DueToday, DueSoon, Upcoming, Inactive}

// Reminder statuses.
const (
	StatusPending   = "pending"
	StatusSnoozed   = "snoozed"
	StatusCompleted = "completed"
	StatusDismissed = "dismissed"
	StatusOngoing   = "ongoing"
)

// Reminder metadata keys.
const (
	FieldRemindAt     = "remind-at"
	FieldSnoozedUntil = "snoozed-until"
)

const soonWindow = 24 * time.Hour

const dateLayout = "2006-01-02"

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTime parses a front-block timestamp. Zone-less values are read in loc.
// dateOnly is true for plain dates.
func ParseTime(s string, loc *time.Location) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, true
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, true
		}
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, true, true
	}
	return time.Time{}, false, false
}

// DueField returns the metadata key that governs rec's due time.
func DueField(rec models.Record) string {
	if rec.Status(StatusPending) == StatusSnoozed {
		return FieldSnoozedUntil
	}
	return FieldRemindAt
}

// DueTime returns the effective due time of rec.
func DueTime(rec models.Record, loc *time.Location) (time.Time, bool) {
	t, _, ok := ParseTime(rec.Metadata.Str(DueField(rec)), loc)
	return t, ok
}

// Classify places rec into exactly one Window relative to now.
func Classify(rec models.Record, now time.Time) Window {
	status := rec.Status(StatusPending)
	switch status {
	case StatusCompleted, StatusDismissed, StatusOngoing:
		return Inactive
	}
	due, dateOnly, ok := ParseTime(rec.Metadata.Str(DueField(rec)), now.Location())
	if !ok {
		return Inactive
	}
	if status == StatusSnoozed && !due.After(now) {
		return DueToday
	}
	if dateOnly {
		today := startOfDay(now)
		switch {
		case due.Before(today):
			return Overdue
		case due.Equal(today):
			return DueToday
		case due.Equal(today.AddDate(0, 0, 1)):
			return DueSoon
		}
		return Upcoming
	}
	switch {
	case due.Before(now):
		return Overdue
	case due.Sub(now) <= soonWindow:
		return DueSoon
	}
	return Upcoming
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
