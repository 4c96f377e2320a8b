// Package taskservice is the in-process facade over the task index: reads come
// from the published snapshot, writes go through the metadata cache and mark
// the index dirty.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/starford/almanac/internal/apperr"
	"github.com/starford/almanac/internal/index"
	"github.com/starford/almanac/internal/metacache"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/parser"
	"github.com/starford/almanac/internal/query"
	"github.com/starford/almanac/internal/recurrence"
	"github.com/starford/almanac/internal/scanner"
	"github.com/starford/almanac/internal/storage"
)

// maxNameAttempts bounds the retries on file name collisions in CreateTask.
const maxNameAttempts = 16

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string              `json:"path"`
	Title       string              `json:"title"`
	IsTask      bool                `json:"is_task"`
	Frontmatter *models.Frontmatter `json:"frontmatter"`
	Extra       map[string]any      `json:"extra,omitempty"`
	Body        string              `json:"body"`
	Links       []parser.Link       `json:"links"`
}

// Service coordinates the index, the metadata cache and storage.
type Service struct {
	idx     *index.Indexer
	cache   *metacache.Cache
	store   storage.Provider
	scanner *scanner.Scanner
	logger  *slog.Logger
	now     func() time.Time
	intN    func(n int) int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock sets the time source used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRand sets the random source used for new file names.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.intN = r.IntN }
}

// NewService creates a task service.
func NewService(idx *index.Indexer, cache *metacache.Cache, store storage.Provider, sc *scanner.Scanner, opts ...Option) *Service {
	s := &Service{
		idx:     idx,
		cache:   cache,
		store:   store,
		scanner: sc,
		logger:  slog.Default(),
		now:     time.Now,
		intN:    rand.IntN,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Today returns the current local date.
func (s *Service) Today() time.Time { return models.Day(s.now()) }

// Load returns the tasks that apply to date, sorted for it. It never blocks
// on indexing.
func (s *Service) Load(_ context.Context, date time.Time) []*models.Task {
	tasks := query.Load(s.idx.Snapshot().Tasks, date)
	query.Sort(tasks, date)
	return tasks
}

// Filter narrows the tasks that apply to date by status and context.
// Recurring tasks not due on date are dropped first. An empty status selects
// open tasks; an empty context matches everything.
func (s *Service) Filter(_ context.Context, status, contextName string, date time.Time) []*models.Task {
	if status == "" {
		status = models.StatusOpen
	}
	tasks := query.Filter(query.Load(s.idx.Snapshot().Tasks, date), status, contextName, date)
	query.Sort(tasks, date)
	return tasks
}

// TasksDueOn returns the open one-off tasks whose due date is date.
func (s *Service) TasksDueOn(_ context.Context, date time.Time) []*models.Task {
	return query.DueOn(s.idx.Snapshot().Tasks, date)
}

// ToggleStatus toggles the task at path for today.
func (s *Service) ToggleStatus(ctx context.Context, path string) (*models.Frontmatter, error) {
	return s.ToggleStatusOn(ctx, path, s.Today())
}

// ToggleStatusOn toggles a one-off task's status, or a recurring task's
// completion for date.
func (s *Service) ToggleStatusOn(_ context.Context, path string, date time.Time) (*models.Frontmatter, error) {
	fm, err := s.read(path)
	if err != nil {
		return nil, err
	}
	recurrence.ToggleInstance(fm, date)
	if err := s.write(path, fm); err != nil {
		return nil, err
	}
	s.logger.Info("taskservice: status toggled",
		slog.String("path", path),
		slog.String("status", recurrence.EffectiveStatus(fm, date)))
	return fm, nil
}

// CyclePriority advances low → normal → high → low and returns the new value.
func (s *Service) CyclePriority(_ context.Context, path string) (string, error) {
	fm, err := s.read(path)
	if err != nil {
		return "", err
	}
	fm.Priority = nextPriority(fm.Priority)
	if err := s.write(path, fm); err != nil {
		return "", err
	}
	s.logger.Info("taskservice: priority changed", slog.String("path", path), slog.String("priority", fm.Priority))
	return fm.Priority, nil
}

func nextPriority(p string) string {
	switch p {
	case models.PriorityLow:
		return models.PriorityNormal
	case models.PriorityNormal:
		return models.PriorityHigh
	case models.PriorityHigh:
		return models.PriorityLow
	default:
		return models.PriorityNormal
	}
}

// Archive adds or removes the archive tag. A tags value that is not a list
// is replaced.
func (s *Service) Archive(_ context.Context, path string, archive bool) error {
	fm, err := s.read(path)
	if err != nil {
		return err
	}
	tags := fm.Tags
	if tags == nil {
		tags = []string{}
	}
	has := slices.Contains(tags, models.TagArchive)
	switch {
	case archive && !has:
		tags = append(tags, models.TagArchive)
	case !archive && has:
		tags = slices.DeleteFunc(tags, func(t string) bool { return t == models.TagArchive })
	}
	fm.Tags = tags
	if err := s.write(path, fm); err != nil {
		return err
	}
	s.logger.Info("taskservice: archive set", slog.String("path", path), slog.Bool("archived", archive))
	return nil
}

// Delete removes the task file at path. Paths that are not tasks are
// reported as not found.
func (s *Service) Delete(_ context.Context, path string) error {
	fm, err := s.read(path)
	if err != nil {
		return err
	}
	if !fm.IsTask() {
		return fmt.Errorf("taskservice: delete %s: not a task: %w", path, apperr.ErrNotFound)
	}
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperr.ErrNotFound
		}
		s.logger.Error("taskservice: delete failed", slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("taskservice: delete %s: %w", path, err)
	}
	s.cache.Invalidate(path)
	s.idx.Invalidate()
	s.logger.Info("taskservice: task deleted", slog.String("path", path))
	return nil
}

// CreateTask writes a new task note and returns its vault-relative path.
func (s *Service) CreateTask(_ context.Context, in NewTask) (string, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrInvalidTask, err)
	}

	now := s.now()
	stamp := now.Format(models.TimestampLayout)
	for range maxNameAttempts {
		name := now.Format("060102") + s.suffix() + ".md"
		fm := in.frontmatter(strings.TrimSuffix(name, ".md"), stamp)
		content, err := parser.Render(fm, []byte("# "+in.Title+"\n"))
		if err != nil {
			return "", fmt.Errorf("taskservice: render %s: %w", name, err)
		}
		err = s.store.Create(name, content)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			s.logger.Debug("taskservice: name taken", slog.String("path", name))
			continue
		}
		if err != nil {
			s.logger.Error("taskservice: create failed", slog.String("path", name), slog.String("error", err.Error()))
			return "", fmt.Errorf("taskservice: create %s: %w", name, err)
		}
		s.idx.Invalidate()
		s.logger.Info("taskservice: task created", slog.String("path", name), slog.String("title", in.Title))
		return name, nil
	}
	return "", fmt.Errorf("taskservice: create: no free file name after %d attempts: %w", maxNameAttempts, apperr.ErrAlreadyExists)
}

func (s *Service) suffix() string {
	var b [3]byte
	for i := range b {
		b[i] = byte('a' + s.intN(26))
	}
	return string(b[:])
}

// NotesCreatedOn returns the non-task notes whose dateCreated falls on date,
// sorted by display title.
func (s *Service) NotesCreatedOn(_ context.Context, date time.Time) ([]*models.Note, error) {
	paths, err := s.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("taskservice: notes created on: %w", err)
	}
	day := date.Format(models.DateLayout)
	var out []*models.Note
	for _, p := range paths {
		fm := s.cache.Get(p)
		if fm.IsTask() || !strings.HasPrefix(fm.DateCreated, day) {
			continue
		}
		out = append(out, &models.Note{Path: p, Frontmatter: *fm})
	}
	slices.SortStableFunc(out, func(a, b *models.Note) int {
		return strings.Compare(a.DisplayTitle(), b.DisplayTitle())
	})
	return out, nil
}

// GetNote returns the frontmatter, body and wikilinks of the note at path.
func (s *Service) GetNote(_ context.Context, p string) (*NoteDetail, error) {
	if !strings.HasSuffix(p, ".md") {
		return nil, apperr.ErrNotFound
	}
	data, err := s.store.Read(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("taskservice: read %s: %w", p, err)
	}
	fm := s.cache.Get(p)
	body := parser.Body(data)
	n := &models.Note{Path: p, Frontmatter: *fm}
	links := parser.Links(body)
	if links == nil {
		links = []parser.Link{}
	}
	return &NoteDetail{
		Path:        p,
		Title:       n.DisplayTitle(),
		IsTask:      fm.IsTask(),
		Frontmatter: fm,
		Extra:       fm.Extra(),
		Body:        string(body),
		Links:       links,
	}, nil
}

// IndexStatus reports the indexer state.
func (s *Service) IndexStatus() index.Status { return s.idx.Status() }

// Rebuild runs a synchronous rebuild.
func (s *Service) Rebuild(ctx context.Context) (index.Stats, error) {
	return s.idx.RebuildNow(ctx)
}

// read returns a private copy of the frontmatter at path, or ErrNotFound.
func (s *Service) read(p string) (*models.Frontmatter, error) {
	if path.Ext(p) != ".md" {
		return nil, fmt.Errorf("taskservice: %s: %w", p, apperr.ErrNotFound)
	}
	if _, err := s.store.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("taskservice: %s: %w", p, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("taskservice: stat %s: %w", p, err)
	}
	return s.cache.Get(p), nil
}

// write persists fm and marks the index dirty. On failure the cache and the
// index are untouched.
func (s *Service) write(p string, fm *models.Frontmatter) error {
	if err := s.cache.Write(p, fm); err != nil {
		s.logger.Error("taskservice: write failed", slog.String("path", p), slog.String("error", err.Error()))
		return fmt.Errorf("taskservice: could not update %s: %w", p, err)
	}
	s.idx.Invalidate()
	return nil
}

// ParseDay parses a YYYY-MM-DD request parameter. An empty value means today.
func (s *Service) ParseDay(v string) (time.Time, error) {
	if v == "" {
		return s.Today(), nil
	}
	d, err := time.ParseInLocation(models.DateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", apperr.ErrInvalidInput, v)
	}
	return d, nil
}
