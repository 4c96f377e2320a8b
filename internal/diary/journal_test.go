package diary

import (
	"errors"
	"io"
	"log/slog"
	"slices"
	"testing"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/metacache"
	"github.com/starford/almanac/internal/testutil"
)

func newJournal(t *testing.T) (string, *Journal) {
	t.Helper()
	dir, store := testutil.TestVault(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return dir, New(store, metacache.New(store, metacache.WithLogger(logger)), logger)
}

func day(s string) time.Time {
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return d
}

func TestWeekStats(t *testing.T) {
	dir, j := newJournal(t)
	testutil.WriteNote(t, dir, "2024-03-04.md", "---\npomodoros: 4\nworkout: true\nmeditate: true\n---\n")
	testutil.WriteNote(t, dir, "2024-03-06.md", "---\npomodoros: \"3\"\nworkout: false\nmeditate: true\n---\n")
	testutil.WriteNote(t, dir, "2024-03-10.md", "---\npomodoros: 2\nworkout: true\n---\n")
	testutil.WriteNote(t, dir, "2024-03-11.md", "---\npomodoros: 100\nworkout: true\n---\n")
	testutil.WriteNote(t, dir, "2024-03-05.md", "no frontmatter\n")

	got := j.WeekStats(day("2024-03-04"))
	want := Stats{From: "2024-03-04", To: "2024-03-10", Pomodoros: 9, Workouts: 2, Meditated: 2}
	if got != want {
		t.Errorf("week = %+v, want %+v", got, want)
	}
}

func TestMonthStats(t *testing.T) {
	dir, j := newJournal(t)
	testutil.WriteNote(t, dir, "2024-02-01.md", "---\npomodoros: 1\n---\n")
	testutil.WriteNote(t, dir, "2024-02-29.md", "---\npomodoros: 2\nmeditate: true\n---\n")
	testutil.WriteNote(t, dir, "2024-03-01.md", "---\npomodoros: 50\n---\n")

	got := j.MonthStats(day("2024-02-15"))
	want := Stats{From: "2024-02-01", To: "2024-02-29", Pomodoros: 3, Meditated: 1}
	if got != want {
		t.Errorf("month = %+v, want %+v", got, want)
	}
}

func TestSearch(t *testing.T) {
	dir, j := newJournal(t)
	testutil.WriteNote(t, dir, "2024-03-02.md", "---\nmood: Sunny\n---\nwalked\n")
	testutil.WriteNote(t, dir, "2024-03-01.md", "---\n---\nA SUNNY day\n")
	testutil.WriteNote(t, dir, "2024-03-03.md", "---\n---\nrain\n")
	testutil.WriteNote(t, dir, "nested/2024-03-04.md", "sunny\n")

	got, err := j.Search("sunny")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"2024-03-01", "2024-03-02"}) {
		t.Errorf("search = %v", got)
	}
}

func TestWithTag(t *testing.T) {
	dir, j := newJournal(t)
	testutil.WriteNote(t, dir, "2024-03-01.md", "---\ntags: [travel, work]\n---\n")
	testutil.WriteNote(t, dir, "2024-03-02.md", "---\ntags: travel\n---\n")
	testutil.WriteNote(t, dir, "2024-03-03.md", "---\ntags: [home]\n---\n")

	got, err := j.WithTag("travel")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"2024-03-01"}) {
		t.Errorf("tagged = %v", got)
	}
}

func TestPreview(t *testing.T) {
	dir, j := newJournal(t)
	testutil.WriteNote(t, dir, "2024-03-01.md", "---\nmood: ok\n---\nhello\n")

	got, err := j.Preview(day("2024-03-01"))
	if err != nil || got != "---\nmood: ok\n---\nhello\n" {
		t.Errorf("preview = %q, %v", got, err)
	}
	if _, err := j.Preview(day("2024-03-02")); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
}
