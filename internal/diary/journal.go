// Package diary reads the daily journal: one YYYY-MM-DD.md file per day with
// habit counters in its frontmatter.
package diary

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/metacache"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/storage"
)

// Frontmatter keys of a diary entry.
const (
	KeyPomodoros = "pomodoros"
	KeyWorkout   = "workout"
	KeyMeditate  = "meditate"
)

// Stats aggregates the habit counters of a date range.
type Stats struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Pomodoros int    `json:"pomodoros"`
	Workouts  int    `json:"workouts"`
	Meditated int    `json:"meditated"`
}

// Journal gives read access to the diary directory.
type Journal struct {
	store  storage.Provider
	cache  *metacache.Cache
	logger *slog.Logger
}

// New creates a Journal. cache must be rooted at the same directory as store.
func New(store storage.Provider, cache *metacache.Cache, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: store, cache: cache, logger: logger}
}

func entryPath(day time.Time) string {
	return day.Format(models.DateLayout) + ".md"
}

// Stats sums the counters of every day from from through to inclusive.
// Missing days count as empty.
func (j *Journal) Stats(from, to time.Time) Stats {
	from, to = models.Day(from), models.Day(to)
	st := Stats{From: from.Format(models.DateLayout), To: to.Format(models.DateLayout)}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		fm := j.cache.Get(entryPath(d))
		st.Pomodoros += fm.Int(KeyPomodoros)
		if fm.Bool(KeyWorkout) {
			st.Workouts++
		}
		if fm.Bool(KeyMeditate) {
			st.Meditated++
		}
	}
	return st
}

// WeekStats covers the seven days starting at start.
func (j *Journal) WeekStats(start time.Time) Stats {
	return j.Stats(start, start.AddDate(0, 0, 6))
}

// MonthStats covers the calendar month containing day.
func (j *Journal) MonthStats(day time.Time) Stats {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return j.Stats(first, first.AddDate(0, 1, -1))
}

// entries lists the top-level markdown files of the diary.
func (j *Journal) entries() ([]string, error) {
	all, err := j.store.List("")
	if err != nil {
		return nil, fmt.Errorf("diary: list: %w", err)
	}
	return slices.DeleteFunc(all, func(p string) bool { return strings.Contains(p, "/") }), nil
}

// Search returns the entry names whose content contains query, ignoring
// case, in sorted order.
func (j *Journal) Search(query string) ([]string, error) {
	paths, err := j.entries()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var out []string
	for _, p := range paths {
		data, err := j.store.Read(p)
		if err != nil {
			j.logger.Warn("diary: read failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		if strings.Contains(strings.ToLower(string(data)), query) {
			out = append(out, strings.TrimSuffix(p, ".md"))
		}
	}
	return out, nil
}

// WithTag returns the sorted entry names whose tags list contains tag.
func (j *Journal) WithTag(tag string) ([]string, error) {
	paths, err := j.entries()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		if j.cache.Get(p).HasTag(tag) {
			out = append(out, strings.TrimSuffix(p, ".md"))
		}
	}
	return out, nil
}

// Preview returns the full text of the entry for day.
func (j *Journal) Preview(day time.Time) (string, error) {
	data, err := j.store.Read(entryPath(day))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperr.ErrNotFound
		}
		return "", fmt.Errorf("diary: preview: %w", err)
	}
	return string(data), nil
}
