package taskservice

import (
	"time"

	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/query"
	"github.com/starford/almanac/internal/recurrence"
)

// TaskView is the representation of a task for one reference date, as the
// API and MCP layers return it.
type TaskView struct {
	Path       string             `json:"path"`
	Title      string             `json:"title"`
	Status     string             `json:"status"`
	Priority   string             `json:"priority"`
	Due        string             `json:"due,omitempty"`
	Contexts   []string           `json:"contexts"`
	Tags       []string           `json:"tags"`
	Overdue    bool               `json:"overdue"`
	Archived   bool               `json:"archived"`
	Recurrence *models.Recurrence `json:"recurrence,omitempty"`
}

// View builds the view of t for date.
func View(t *models.Task, date time.Time) TaskView {
	prio := t.Priority
	if prio == "" {
		prio = models.PriorityNormal
	}
	return TaskView{
		Path:       t.Path,
		Title:      t.DisplayTitle(),
		Status:     recurrence.EffectiveStatus(&t.Frontmatter, date),
		Priority:   prio,
		Due:        t.Due,
		Contexts:   nonNil(t.Contexts),
		Tags:       nonNil(t.Tags),
		Overdue:    query.IsOverdue(t, date),
		Archived:   t.IsArchived(),
		Recurrence: t.Recurrence,
	}
}

// Views maps View over tasks.
func Views(tasks []*models.Task, date time.Time) []TaskView {
	out := make([]TaskView, len(tasks))
	for i, t := range tasks {
		out[i] = View(t, date)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
