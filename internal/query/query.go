// Package query turns the task index into dated views: recurrence-aware
// loading, status and context filtering, and the overdue-first sort order.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/recurrence"
)

// Status filter values with special meaning.
const (
	FilterAll     = "all"
	FilterArchive = "archive"
)

// maxDate sorts tasks without a usable due date last.
var maxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

var priorityRank = map[string]int{
	models.PriorityHigh:   0,
	models.PriorityNormal: 1,
	models.PriorityLow:    2,
}

// Load returns the non-recurring tasks plus the recurring tasks with an
// instance on date, preserving input order.
func Load(tasks []*models.Task, date time.Time) []*models.Task {
	out := make([]*models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsRecurring() || recurrence.IsDueOn(&t.Frontmatter, date) {
			out = append(out, t)
		}
	}
	return out
}

// Filter applies a status filter and an optional context filter.
//
// The "archive" status selects archived tasks regardless of status. Any other
// value drops archived tasks and keeps those whose effective status for date
// or raw status equals the filter; "all" keeps every status. An empty
// context matches everything; otherwise contexts must contain it, ignoring
// case.
func Filter(tasks []*models.Task, status, context string, date time.Time) []*models.Task {
	var out []*models.Task
	for _, t := range tasks {
		archived := t.IsArchived()
		if status == FilterArchive {
			if archived {
				out = append(out, t)
			}
			continue
		}
		if archived {
			continue
		}
		if !matchStatus(t, status, date) {
			continue
		}
		if context != "" && !t.HasContext(context) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchStatus(t *models.Task, status string, date time.Time) bool {
	if status == FilterAll {
		return true
	}
	if recurrence.EffectiveStatus(&t.Frontmatter, date) == status {
		return true
	}
	raw := t.Status
	if raw == "" {
		raw = models.StatusOpen
	}
	return raw == status
}

// Key orders tasks: overdue first, then by priority, then by due date.
type Key struct {
	NotOverdue   bool
	PriorityRank int
	Due          time.Time
}

// Compare orders keys ascending.
func (k Key) Compare(o Key) int {
	if k.NotOverdue != o.NotOverdue {
		if !k.NotOverdue {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(k.PriorityRank, o.PriorityRank); c != 0 {
		return c
	}
	return k.Due.Compare(o.Due)
}

// SortKey returns the ordering key of t relative to date.
func SortKey(t *models.Task, date time.Time) Key {
	rank, ok := priorityRank[t.Priority]
	if !ok {
		rank = priorityRank[models.PriorityNormal]
	}
	due, ok := dueDate(t)
	if !ok {
		due = maxDate
	}
	return Key{
		NotOverdue:   !IsOverdue(t, date),
		PriorityRank: rank,
		Due:          due,
	}
}

// Sort orders tasks in place by SortKey. Ties keep their input order.
func Sort(tasks []*models.Task, date time.Time) {
	keys := make(map[*models.Task]Key, len(tasks))
	for _, t := range tasks {
		keys[t] = SortKey(t, date)
	}
	slices.SortStableFunc(tasks, func(a, b *models.Task) int {
		return keys[a].Compare(keys[b])
	})
}

// IsOverdue reports whether t has a parseable due date before date and is
// not done on date.
func IsOverdue(t *models.Task, date time.Time) bool {
	due, ok := dueDate(t)
	if !ok {
		return false
	}
	return due.Before(models.Day(date)) && recurrence.EffectiveStatus(&t.Frontmatter, date) != models.StatusDone
}

// DueOn returns the non-recurring tasks due exactly on date whose raw status
// is not done. Recurrence is ignored.
func DueOn(tasks []*models.Task, date time.Time) []*models.Task {
	day := models.Day(date)
	var out []*models.Task
	for _, t := range tasks {
		if t.IsRecurring() || t.Status == models.StatusDone {
			continue
		}
		if due, ok := dueDate(t); ok && due.Equal(day) {
			out = append(out, t)
		}
	}
	return out
}

// dueDate parses the due field, which must be a plain YYYY-MM-DD date.
func dueDate(t *models.Task) (time.Time, bool) {
	s := strings.TrimSpace(t.Due)
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(models.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
