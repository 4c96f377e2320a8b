package taskservice

import (
	"errors"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/recurrence"
)

// NewTask holds the fields of a task to create.
type NewTask struct {
	Title      string             `json:"title"`
	Due        string             `json:"due,omitempty"`
	Priority   string             `json:"priority,omitempty"`
	Tags       []string           `json:"tags,omitempty"`
	Contexts   []string           `json:"contexts,omitempty"`
	Recurrence *models.Recurrence `json:"recurrence,omitempty"`
}

func (n *NewTask) normalize() {
	n.Title = strings.TrimSpace(n.Title)
	n.Due = strings.TrimSpace(n.Due)
	n.Priority = strings.ToLower(strings.TrimSpace(n.Priority))
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}
	n.Tags = cleanList(n.Tags)
	n.Contexts = cleanList(n.Contexts)
	if n.Recurrence != nil {
		r := *n.Recurrence
		n.Recurrence = &r
		r.Frequency = strings.ToLower(strings.TrimSpace(r.Frequency))
		r.DaysOfWeek = cleanList(r.DaysOfWeek)
		for i, d := range r.DaysOfWeek {
			r.DaysOfWeek[i] = strings.ToLower(d)
		}
	}
}

// cleanList trims entries and drops empty ones and duplicates.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Validate implements validation.Validatable.
func (n NewTask) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Title, validation.Required, validation.Length(1, 500)),
		validation.Field(&n.Due, validation.Date(models.DateLayout)),
		validation.Field(&n.Priority, validation.In(models.PriorityLow, models.PriorityNormal, models.PriorityHigh)),
		validation.Field(&n.Recurrence, validation.By(validateNewRule)),
	)
}

// validateNewRule applies the general rule checks and additionally requires
// a day of month for yearly rules.
func validateNewRule(v any) error {
	r, _ := v.(*models.Recurrence)
	if r == nil {
		return nil
	}
	if err := recurrence.Validate(r); err != nil {
		return err
	}
	if r.Frequency == models.FrequencyYearly && r.DayOfMonth == 0 {
		return errors.New("yearly recurrence needs day_of_month")
	}
	return nil
}

// frontmatter builds the frontmatter of the new note.
func (n *NewTask) frontmatter(stem, stamp string) *models.Frontmatter {
	tags := []string{models.TagTask}
	for _, t := range n.Tags {
		if t != models.TagTask {
			tags = append(tags, t)
		}
	}
	contexts := n.Contexts
	if contexts == nil {
		contexts = []string{}
	}
	fm := &models.Frontmatter{
		Title:        n.Title,
		ZettelID:     stem,
		Date:         stamp,
		DateCreated:  stamp,
		DateModified: stamp,
		Status:       models.StatusOpen,
		Due:          n.Due,
		Tags:         tags,
		Priority:     n.Priority,
		Contexts:     contexts,
	}
	if n.Recurrence != nil {
		fm.Recurrence = &models.Recurrence{
			Frequency:  n.Recurrence.Frequency,
			DaysOfWeek: slices.Clone(n.Recurrence.DaysOfWeek),
			DayOfMonth: n.Recurrence.DayOfMonth,
		}
		fm.CompleteInstances = []string{}
	}
	return fm
}
