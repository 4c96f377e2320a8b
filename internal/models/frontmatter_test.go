package models

import (
	"slices"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, src string) *Frontmatter {
	t.Helper()
	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(src), &fm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &fm
}

func encode(t *testing.T, fm *Frontmatter) string {
	t.Helper()
	out, err := yaml.Marshal(fm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(out)
}

func TestFrontmatter_TypedFields(t *testing.T) {
	fm := decode(t, `title: Buy milk
status: open
due: 2024-03-01
priority: high
tags: [task, errand]
contexts: [Home]
recurrence:
  frequency: weekly
  days_of_week: mon, wed
complete_instances: ["2024-02-26"]
`)
	if fm.Title != "Buy milk" || fm.Status != StatusOpen || fm.Priority != PriorityHigh {
		t.Errorf("scalars = %q %q %q", fm.Title, fm.Status, fm.Priority)
	}
	if fm.Due != "2024-03-01" {
		t.Errorf("due = %q", fm.Due)
	}
	if !fm.IsTask() || fm.IsArchived() {
		t.Errorf("tags = %v", fm.Tags)
	}
	if !fm.HasContext("home") {
		t.Errorf("contexts = %v", fm.Contexts)
	}
	if fm.Recurrence == nil || fm.Recurrence.Frequency != FrequencyWeekly {
		t.Fatalf("recurrence = %+v", fm.Recurrence)
	}
	if got := strings.Join(fm.Recurrence.DaysOfWeek, ","); got != "mon,wed" {
		t.Errorf("days_of_week = %q", got)
	}
	if len(fm.CompleteInstances) != 1 || fm.CompleteInstances[0] != "2024-02-26" {
		t.Errorf("complete_instances = %v", fm.CompleteInstances)
	}
}

func TestFrontmatter_TagsScalarIsNotTask(t *testing.T) {
	fm := decode(t, "tags: task\n")
	if fm.IsTask() {
		t.Error("scalar tags must not count as a list containing task")
	}
	if out := encode(t, fm); out != "tags: task\n" {
		t.Errorf("round trip = %q", out)
	}
}

func TestFrontmatter_EmptyRecurrenceIsNotARule(t *testing.T) {
	fm := decode(t, "tags: [task]\nrecurrence: {}\n")
	if fm.IsRecurring() {
		t.Error("empty mapping must not be a recurrence rule")
	}
}

func TestFrontmatter_RoundTripKeepsUnknownKeysAndOrder(t *testing.T) {
	src := `zettelid: "240301abc"
custom: {nested: [1, 2]}
title: Note
pomodoros: 4
tags:
  - task
`
	fm := decode(t, src)
	if fm.Int("pomodoros") != 4 {
		t.Errorf("pomodoros = %d", fm.Int("pomodoros"))
	}
	if got, want := fm.Keys(), []string{"zettelid", "custom", "title", "pomodoros", "tags"}; !slices.Equal(got, want) {
		t.Errorf("decoded keys = %v, want %v", got, want)
	}
	fm.Status = StatusDone
	out := encode(t, fm)

	again := decode(t, out)
	want := []string{"zettelid", "custom", "title", "pomodoros", "tags", "status"}
	if got := again.Keys(); !slices.Equal(got, want) {
		t.Errorf("round-tripped keys = %v, want %v in:\n%s", got, want, out)
	}
	if again.Status != StatusDone {
		t.Errorf("status = %q", again.Status)
	}
	if !strings.Contains(out, `zettelid: "240301abc"`) {
		t.Errorf("unchanged value lost its style:\n%s", out)
	}
}

func TestFrontmatter_ClearedFieldEmitsNull(t *testing.T) {
	fm := decode(t, "title: x\ndue: 2024-01-01\n")
	fm.Due = ""
	out := encode(t, fm)
	if !strings.Contains(out, "due: null") {
		t.Errorf("out = %q", out)
	}
	back := decode(t, out)
	if back.Due != "" || !back.Has(KeyDue) {
		t.Errorf("due = %q present=%v", back.Due, back.Has(KeyDue))
	}
}

func TestFrontmatter_RecurringAlwaysWritesCompleteInstances(t *testing.T) {
	fm := &Frontmatter{
		Title:      "Water plants",
		Tags:       []string{TagTask},
		Recurrence: &Recurrence{Frequency: FrequencyDaily},
	}
	out := encode(t, fm)
	if !strings.Contains(out, "complete_instances: []") {
		t.Errorf("out = %q", out)
	}
	back := decode(t, out)
	if back.Recurrence == nil || back.Recurrence.Frequency != FrequencyDaily {
		t.Errorf("recurrence = %+v", back.Recurrence)
	}
}

func TestFrontmatter_WrongShapeKnownKeyIsPreserved(t *testing.T) {
	fm := decode(t, "status: [a, b]\ncontexts: home\n")
	if fm.Status != "" || fm.Contexts != nil {
		t.Errorf("status=%q contexts=%v", fm.Status, fm.Contexts)
	}
	out := encode(t, fm)
	if !strings.Contains(out, "status: [a, b]") || !strings.Contains(out, "contexts: home") {
		t.Errorf("out = %q", out)
	}
}

func TestFrontmatter_NotAMapping(t *testing.T) {
	var fm Frontmatter
	if err := yaml.Unmarshal([]byte("just a string"), &fm); err == nil {
		t.Error("expected error for scalar document")
	}
}

func TestFrontmatter_CloneIsIndependent(t *testing.T) {
	fm := decode(t, "tags: [task]\nrecurrence: {frequency: weekly, days_of_week: [mon]}\n")
	c := fm.Clone()
	c.Tags[0] = "changed"
	c.Recurrence.DaysOfWeek[0] = "tue"
	if fm.Tags[0] != "task" || fm.Recurrence.DaysOfWeek[0] != "mon" {
		t.Error("clone shares slices with the original")
	}
}

func TestFrontmatter_SetAndExtra(t *testing.T) {
	var fm Frontmatter
	if err := fm.Set("workout", true); err != nil {
		t.Fatal(err)
	}
	if err := fm.Set(KeyTitle, "x"); err == nil {
		t.Error("Set on a typed key must fail")
	}
	if !fm.Bool("workout") {
		t.Error("workout = false")
	}
	if v, ok := fm.Extra()["workout"]; !ok || v != true {
		t.Errorf("extra = %v", fm.Extra())
	}
}

func TestRecurrence_DayOfMonthAndUnknownKeys(t *testing.T) {
	fm := decode(t, "recurrence:\n  frequency: monthly\n  day_of_month: 15\n  until: 2025-01-01\n")
	r := fm.Recurrence
	if r.DayOfMonth != 15 {
		t.Errorf("day_of_month = %d", r.DayOfMonth)
	}
	r.Frequency = FrequencyYearly
	out := encode(t, fm)
	if !strings.Contains(out, "frequency: yearly") || !strings.Contains(out, "until: 2025-01-01") {
		t.Errorf("out = %q", out)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-03-01", "2024-03-01T10:11:12", "2024-03-01T10:11:12+02:00"} {
		d, ok := ParseDate(s)
		if !ok || d.Format(DateLayout) != "2024-03-01" {
			t.Errorf("ParseDate(%q) = %v, %v", s, d, ok)
		}
	}
	if _, ok := ParseDate("tomorrow"); ok {
		t.Error("ParseDate accepted garbage")
	}
}

func TestNote_DisplayTitle(t *testing.T) {
	n := Note{Path: "inbox/240301abc.md"}
	if n.DisplayTitle() != "240301abc" {
		t.Errorf("title = %q", n.DisplayTitle())
	}
}
