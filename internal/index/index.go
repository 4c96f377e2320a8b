// Package index maintains the in-memory task index: an incrementally rebuilt,
// atomically published snapshot of every note tagged "task".
package index

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/scanner"
	"github.com/starford/almanac/internal/storage"
)

const defaultWorkers = 8

// Snapshot is an immutable view of the task index. Readers must not modify
// it or the tasks it holds.
type Snapshot struct {
	// Tasks is sorted for Date only. Overdue buckets move as days pass, so
	// callers querying another reference date must load and sort again
	// (query.Load, query.Sort) rather than rely on this order.
	Tasks []*models.Task
	// Date is the reference date Tasks were sorted for: the local day of
	// the rebuild or warm start.
	Date time.Time
	// Files is the number of scanned files tracked by the rebuild.
	Files   int
	BuiltAt time.Time

	byPath map[string]*models.Task
}

// Get returns the task at path.
func (s *Snapshot) Get(path string) (*models.Task, bool) {
	t, ok := s.byPath[path]
	return t, ok
}

// Len returns the number of tasks.
func (s *Snapshot) Len() int { return len(s.Tasks) }

// Stats describes one rebuild.
type Stats struct {
	Scanned  int           `json:"scanned"`
	Parsed   int           `json:"parsed"`
	Removed  int           `json:"removed"`
	Tasks    int           `json:"tasks"`
	Duration time.Duration `json:"duration"`
}

// Status reports the indexer state.
type Status struct {
	Dirty      bool      `json:"dirty"`
	Indexing   bool      `json:"indexing"`
	Generation uint64    `json:"generation"`
	Tasks      int       `json:"tasks"`
	Files      int       `json:"files"`
	BuiltAt    time.Time `json:"built_at"`
	LastError  string    `json:"last_error,omitempty"`
}

// Indexer owns the task index. At most one rebuild runs at a time; readers
// never block on it and always get the latest published snapshot.
type Indexer struct {
	scanner   *scanner.Scanner
	store     storage.Provider
	state     StateStore
	logger    *slog.Logger
	now       func() time.Time
	workers   int
	onPublish func(*Snapshot, Stats)

	mu       sync.Mutex
	dirty    bool
	indexing bool
	gen      uint64        // bumped by every Invalidate
	done     chan struct{} // closed when the in-flight rebuild finishes
	lastErr  error
	wg       sync.WaitGroup

	snapshot atomic.Pointer[Snapshot]

	// Owned by whichever goroutine holds the indexing flag.
	modTimes map[string]time.Time
	records  map[string]*models.Task
	encoded  map[string]string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Indexer) { x.logger = l }
}

// WithClock sets the clock that supplies the sort reference date.
func WithClock(now func() time.Time) Option {
	return func(x *Indexer) { x.now = now }
}

// WithWorkers bounds the number of files parsed concurrently.
func WithWorkers(n int) Option {
	return func(x *Indexer) {
		if n > 0 {
			x.workers = n
		}
	}
}

// WithStateStore persists the modification-time snapshot between runs.
func WithStateStore(s StateStore) Option {
	return func(x *Indexer) { x.state = s }
}

// WithPublishHook registers fn to run after every published rebuild.
func WithPublishHook(fn func(*Snapshot, Stats)) Option {
	return func(x *Indexer) { x.onPublish = fn }
}

// New creates an Indexer. It starts dirty; when a state store is configured
// the stored records are published immediately so the first read is served
// from the previous run.
func New(sc *scanner.Scanner, store storage.Provider, opts ...Option) *Indexer {
	x := &Indexer{
		scanner:  sc,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		workers:  defaultWorkers,
		dirty:    true,
		modTimes: make(map[string]time.Time),
		records:  make(map[string]*models.Task),
		encoded:  make(map[string]string),
	}
	for _, o := range opts {
		o(x)
	}
	x.snapshot.Store(&Snapshot{})
	if x.state != nil {
		x.warmStart()
	}
	return x
}

// Snapshot returns the latest published snapshot without blocking. A dirty
// index starts a background rebuild unless one is already running.
func (x *Indexer) Snapshot() *Snapshot {
	x.Trigger()
	return x.snapshot.Load()
}

// Trigger starts a background rebuild if the index is dirty and idle.
func (x *Indexer) Trigger() {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dirty && !x.indexing {
		x.startLocked()
	}
}

// Invalidate marks the index dirty. It does not start a rebuild; the next
// read or Trigger does. Invalidations that arrive while a rebuild is running
// leave the index dirty after it publishes.
func (x *Indexer) Invalidate() {
	x.mu.Lock()
	x.gen++
	x.dirty = true
	x.mu.Unlock()
}

// Status returns the current indexer state.
func (x *Indexer) Status() Status {
	snap := x.snapshot.Load()
	x.mu.Lock()
	defer x.mu.Unlock()
	st := Status{
		Dirty:      x.dirty,
		Indexing:   x.indexing,
		Generation: x.gen,
		Tasks:      snap.Len(),
		Files:      snap.Files,
		BuiltAt:    snap.BuiltAt,
	}
	if x.lastErr != nil {
		st.LastError = x.lastErr.Error()
	}
	return st
}

// RebuildNow waits for any in-flight rebuild and then runs one synchronously.
func (x *Indexer) RebuildNow(ctx context.Context) (Stats, error) {
	for {
		x.mu.Lock()
		if !x.indexing {
			gen, done := x.claimLocked()
			x.mu.Unlock()
			return x.run(gen, done)
		}
		done := x.done
		x.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Stats{}, ctx.Err()
		}
	}
}

// Wait blocks until no rebuild is running.
func (x *Indexer) Wait(ctx context.Context) error {
	for {
		x.mu.Lock()
		if !x.indexing {
			x.mu.Unlock()
			return nil
		}
		done := x.done
		x.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close waits for background rebuilds to finish.
func (x *Indexer) Close() {
	x.wg.Wait()
}

func (x *Indexer) claimLocked() (uint64, chan struct{}) {
	x.indexing = true
	x.done = make(chan struct{})
	return x.gen, x.done
}

func (x *Indexer) startLocked() {
	gen, done := x.claimLocked()
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		_, _ = x.run(gen, done)
	}()
}

// run performs one rebuild and releases the indexing flag. The index stays
// dirty if the rebuild failed or an invalidation arrived after it started.
func (x *Indexer) run(gen uint64, done chan struct{}) (Stats, error) {
	stats, snap, err := x.rebuild()

	x.mu.Lock()
	x.indexing = false
	x.lastErr = err
	if err == nil {
		x.dirty = x.gen != gen
	}
	x.done = nil
	close(done)
	x.mu.Unlock()

	if err != nil {
		x.logger.Error("index: rebuild failed", slog.String("error", err.Error()))
		return stats, err
	}
	x.logger.Info("index: rebuild done",
		slog.Int("scanned", stats.Scanned),
		slog.Int("parsed", stats.Parsed),
		slog.Int("removed", stats.Removed),
		slog.Int("tasks", stats.Tasks),
		slog.Duration("duration", stats.Duration))
	if x.onPublish != nil {
		x.onPublish(snap, stats)
	}
	return stats, nil
}
