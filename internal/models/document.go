// Package models defines the domain types for the org tree.
package models

import (
	"strings"
	"time"
)

// Kind is the inferred category of a document.
type Kind string

const (
	KindTask      Kind = "task"
	KindReminder  Kind = "reminder"
	KindKnowledge Kind = "knowledge"
	KindInbox     Kind = "inbox-item"
	KindProject   Kind = "project"
	KindUnknown   Kind = "unknown"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindKnowledge, KindProject, KindTask, KindReminder, KindInbox, KindUnknown}

// ParseKind maps an explicit "type" value to a Kind. "inbox" is accepted
// as an alias of "inbox-item".
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "task":
		return KindTask, true
	case "reminder":
		return KindReminder, true
	case "knowledge":
		return KindKnowledge, true
	case "inbox", "inbox-item":
		return KindInbox, true
	case "project":
		return KindProject, true
	}
	return KindUnknown, false
}

// Record is a parsed document in the org tree. Records are snapshots:
// nothing mutates one after the scanner builds it. Metadata is shared by
// every copy of a record, including each aggregation bucket holding it; read
// it in place and use Meta for a copy that is safe to modify.
type Record struct {
	Path       string    `json:"path"`
	Kind       Kind      `json:"kind"`
	Metadata   Metadata  `json:"metadata"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags,omitempty"`
	Links      []string  `json:"links,omitempty"`
	Body       string    `json:"-"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Meta returns a private copy of the record's metadata.
func (r Record) Meta() Metadata {
	return r.Metadata.Clone()
}

// Stem returns the filename without directory or extension.
func (r Record) Stem() string {
	base := r.Path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// Dir returns the slash-separated parent directory ("" at the root).
func (r Record) Dir() string {
	if i := strings.LastIndex(r.Path, "/"); i >= 0 {
		return r.Path[:i]
	}
	return ""
}

// Status returns the "status" field, or def when absent or empty.
func (r Record) Status(def string) string {
	if s := strings.TrimSpace(r.Metadata.Str("status")); s != "" {
		return s
	}
	return def
}

// DisplayTitle prefers an explicit "title" field over the derived title.
func (r Record) DisplayTitle() string {
	if s := strings.TrimSpace(r.Metadata.Str("title")); s != "" {
		return s
	}
	return r.Title
}
