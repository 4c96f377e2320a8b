// Package recurrence decides when recurring tasks are due and tracks their
// per-date completion. All functions are pure.
package recurrence

import (
	"slices"
	"strings"
	"time"

	"github.com/starford/almanac/internal/models"
)

// weekdays maps time.Weekday to the abbreviations used in days_of_week.
var weekdays = [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// Weekday returns the three-letter abbreviation of t's weekday.
func Weekday(t time.Time) string { return weekdays[t.Weekday()] }

// IsWeekday reports whether s is a valid day abbreviation.
func IsWeekday(s string) bool {
	return slices.Contains(weekdays[:], strings.ToLower(strings.TrimSpace(s)))
}

// IsDueOn reports whether fm has an instance on date. Non-recurring records
// are always due. An unknown frequency is never due.
func IsDueOn(fm *models.Frontmatter, date time.Time) bool {
	r := fm.Recurrence
	if r == nil {
		return true
	}
	switch strings.ToLower(r.Frequency) {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		day := Weekday(date)
		for _, d := range r.DaysOfWeek {
			if strings.EqualFold(strings.TrimSpace(d), day) {
				return true
			}
		}
		return false
	case models.FrequencyMonthly:
		return r.DayOfMonth > 0 && date.Day() == r.DayOfMonth
	case models.FrequencyYearly:
		anchor, ok := Anchor(fm)
		if !ok {
			return false
		}
		day := r.DayOfMonth
		if day == 0 {
			day = anchor.Day()
		}
		return date.Month() == anchor.Month() && date.Day() == day
	default:
		return false
	}
}

// Anchor returns the creation date a yearly rule is anchored on: dateCreated,
// falling back to date.
func Anchor(fm *models.Frontmatter) (time.Time, bool) {
	if t, ok := models.ParseDate(fm.DateCreated); ok {
		return t, true
	}
	return models.ParseDate(fm.Date)
}

// EffectiveStatus returns the status of fm for date. A recurring record is
// done iff date is in complete_instances; otherwise the raw status applies,
// defaulting to open.
func EffectiveStatus(fm *models.Frontmatter, date time.Time) string {
	if fm.Recurrence != nil {
		if slices.Contains(fm.CompleteInstances, date.Format(models.DateLayout)) {
			return models.StatusDone
		}
		return models.StatusOpen
	}
	if fm.Status == "" {
		return models.StatusOpen
	}
	return fm.Status
}

// NextStatus returns the status that follows s in the open, in-progress,
// done cycle. Unknown statuses restart at open.
func NextStatus(s string) string {
	switch s {
	case models.StatusOpen, "":
		return models.StatusInProgress
	case models.StatusInProgress:
		return models.StatusDone
	default:
		return models.StatusOpen
	}
}

// ToggleInstance toggles fm in place for date. Recurring records add or
// remove date from complete_instances; others advance their status.
func ToggleInstance(fm *models.Frontmatter, date time.Time) {
	if fm.Recurrence == nil {
		fm.Status = NextStatus(fm.Status)
		return
	}
	day := date.Format(models.DateLayout)
	if i := slices.Index(fm.CompleteInstances, day); i >= 0 {
		fm.CompleteInstances = slices.Delete(slices.Clone(fm.CompleteInstances), i, i+1)
		return
	}
	fm.CompleteInstances = append(slices.Clone(fm.CompleteInstances), day)
}
