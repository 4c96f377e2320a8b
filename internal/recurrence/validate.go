package recurrence

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/almanac/internal/models"
)

// Frequencies lists the recognised recurrence frequencies.
var Frequencies = []any{
	models.FrequencyDaily, models.FrequencyWeekly,
	models.FrequencyMonthly, models.FrequencyYearly,
}

var weekdayRule = validation.By(func(v any) error {
	s, _ := v.(string)
	if !IsWeekday(s) {
		return fmt.Errorf("%q is not a day abbreviation (mon..sun)", s)
	}
	return nil
})

// Validate checks a recurrence rule. Weekly rules need at least one valid
// day, monthly rules a day_of_month in 1..31; a yearly day_of_month is
// optional but must be in range when set.
func Validate(r *models.Recurrence) error {
	if r == nil {
		return nil
	}
	freq := strings.ToLower(r.Frequency)
	return validation.ValidateStruct(r,
		validation.Field(&r.Frequency,
			validation.Required,
			validation.By(func(any) error {
				return validation.Validate(freq, validation.In(Frequencies...))
			}),
		),
		validation.Field(&r.DaysOfWeek,
			validation.When(freq == models.FrequencyWeekly, validation.Required),
			validation.Each(weekdayRule),
		),
		validation.Field(&r.DayOfMonth,
			validation.When(freq == models.FrequencyMonthly, validation.Required),
			validation.Min(0), validation.Max(31),
		),
	)
}

// Warnings returns the problems of fm that make date checks fail closed:
// an unparseable due date, or an invalid or unanchored recurrence rule.
func Warnings(fm *models.Frontmatter) []error {
	var out []error
	if fm.Due != "" {
		if _, ok := models.ParseDate(fm.Due); !ok {
			out = append(out, fmt.Errorf("due %q is not a date", fm.Due))
		}
	}
	if fm.Has(models.KeyRecurrence) && fm.Recurrence == nil {
		out = append(out, errors.New("recurrence is not a non-empty mapping"))
	}
	if err := Validate(fm.Recurrence); err != nil {
		out = append(out, fmt.Errorf("recurrence: %w", err))
	}
	if fm.Recurrence != nil && strings.EqualFold(fm.Recurrence.Frequency, models.FrequencyYearly) {
		if _, ok := Anchor(fm); !ok {
			out = append(out, errors.New("yearly recurrence has no parseable dateCreated or date"))
		}
	}
	return out
}
