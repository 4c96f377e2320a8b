// Package models defines the domain types for Almanac.
package models

import (
	"slices"
	"strings"
	"time"
)

// Well-known frontmatter keys.
const (
	KeyTitle             = "title"
	KeyZettelID          = "zettelid"
	KeyDate              = "date"
	KeyDateCreated       = "dateCreated"
	KeyDateModified      = "dateModified"
	KeyStatus            = "status"
	KeyDue               = "due"
	KeyTags              = "tags"
	KeyPriority          = "priority"
	KeyContexts          = "contexts"
	KeyRecurrence        = "recurrence"
	KeyCompleteInstances = "complete_instances"
)

// Task statuses.
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Reserved tags.
const (
	TagTask    = "task"
	TagArchive = "archive"
)

// Recurrence frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// DateLayout is the layout of due dates and completed instances.
const DateLayout = "2006-01-02"

// TimestampLayout is the layout written to date, dateCreated and dateModified.
const TimestampLayout = "2006-01-02T15:04:05"

// Note is a markdown file with its parsed frontmatter. Notes carrying the
// "task" tag are the records held by the task index.
//
// Notes published in an index snapshot are shared between readers and must
// not be mutated; use Clone to obtain an editable copy of the frontmatter.
type Note struct {
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Frontmatter
}

// HasTag reports whether tags is a list containing tag.
func (f *Frontmatter) HasTag(tag string) bool {
	return slices.Contains(f.Tags, tag)
}

// IsTask reports whether the frontmatter declares the "task" tag.
func (f *Frontmatter) IsTask() bool { return f.HasTag(TagTask) }

// IsArchived reports whether the frontmatter carries the "archive" tag.
func (f *Frontmatter) IsArchived() bool { return f.HasTag(TagArchive) }

// IsRecurring reports whether the frontmatter holds a recurrence rule.
func (f *Frontmatter) IsRecurring() bool { return f.Recurrence != nil }

// HasContext reports whether contexts contains ctx, ignoring case.
func (f *Frontmatter) HasContext(ctx string) bool {
	for _, c := range f.Contexts {
		if strings.EqualFold(c, ctx) {
			return true
		}
	}
	return false
}

// DisplayTitle returns the title, or the file's base name without extension.
func (n *Note) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	base := n.Path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.TrimSuffix(base, ".md")
}

// ParseDate parses an ISO-8601 date or date-time as used in frontmatter.
// Only the calendar date is kept, in the local time zone.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, TimestampLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to local midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

// Task is a note carrying the "task" tag, as held by the task index.
type Task = Note
