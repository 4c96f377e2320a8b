// Package metacache caches parsed frontmatter per file and is the single
// write path for rewriting a note's frontmatter.
package metacache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/almanac/internal/checksum"
	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/parser"
	"github.com/starford/almanac/internal/storage"
)

type entry struct {
	fm      *models.Frontmatter
	hash    string // checksum of the raw frontmatter block
	modTime time.Time
}

// Cache maps note paths to their parsed frontmatter. Entries are revalidated
// by modification time, then by a hash of the frontmatter block.
type Cache struct {
	store storage.Provider
	log   *slog.Logger
	now   func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	parses int // number of YAML decodes, guarded by mu
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithClock sets the clock used to stamp dateModified.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache over store.
func New(store storage.Provider, opts ...Option) *Cache {
	c := &Cache{
		store:   store,
		log:     slog.Default(),
		now:     time.Now,
		entries: make(map[string]*entry),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the frontmatter of path. The result is a private copy the
// caller may modify. Missing, unreadable or malformed files yield an empty
// frontmatter; the failure is logged.
func (c *Cache) Get(path string) *models.Frontmatter {
	info, err := c.store.Stat(path)
	if err != nil {
		c.logReadErr(path, err)
		c.Invalidate(path)
		return &models.Frontmatter{}
	}
	modTime := info.ModTime()

	c.mu.RLock()
	cached := c.entries[path]
	c.mu.RUnlock()
	if cached != nil && cached.modTime.Equal(modTime) {
		return cached.fm.Clone()
	}

	data, err := c.store.Read(path)
	if err != nil {
		c.logReadErr(path, err)
		c.Invalidate(path)
		return &models.Frontmatter{}
	}

	doc, ok := parser.Split(data)
	if !ok {
		c.put(path, &entry{fm: &models.Frontmatter{}, modTime: modTime})
		return &models.Frontmatter{}
	}

	hash := checksum.Sum(doc.Block)
	if cached != nil && cached.hash == hash {
		c.put(path, &entry{fm: cached.fm, hash: hash, modTime: modTime})
		return cached.fm.Clone()
	}

	fm, err := parser.ParseBlock(doc.Block)
	c.mu.Lock()
	c.parses++
	c.mu.Unlock()
	if err != nil {
		c.log.Warn("metacache: malformed frontmatter",
			slog.String("path", path), slog.String("error", err.Error()))
		fm = &models.Frontmatter{}
	}
	c.put(path, &entry{fm: fm, hash: hash, modTime: modTime})
	return fm.Clone()
}

// Write stamps dateModified on a copy of fm, splices it in front of the
// file's existing body and replaces the file atomically. On success the
// cache entry is refreshed with a hash computed from the bytes on disk.
// On failure the cache is left untouched and a descriptive error returned.
func (c *Cache) Write(path string, fm *models.Frontmatter) error {
	fm = fm.Clone()
	fm.DateModified = c.now().Format(models.TimestampLayout)

	var body []byte
	data, err := c.store.Read(path)
	switch {
	case err == nil:
		body = parser.Body(data)
	case errors.Is(err, fs.ErrNotExist):
	default:
		c.log.Error("metacache: read before write failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("metacache: write %s: %w", path, err)
	}

	out, err := parser.Render(fm, body)
	if err != nil {
		c.log.Error("metacache: render failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("metacache: write %s: %w", path, err)
	}
	if err := c.store.Write(path, out); err != nil {
		c.log.Error("metacache: write failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return fmt.Errorf("metacache: write %s: %w", path, err)
	}

	info, err := c.store.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return nil
	}
	written, err := c.store.Read(path)
	if err != nil {
		c.Invalidate(path)
		return nil
	}
	var hash string
	if doc, ok := parser.Split(written); ok {
		hash = checksum.Sum(doc.Block)
	}
	c.put(path, &entry{fm: fm, hash: hash, modTime: info.ModTime()})
	return nil
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Parses returns how many frontmatter blocks have been decoded.
func (c *Cache) Parses() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parses
}

func (c *Cache) put(path string, e *entry) {
	c.mu.Lock()
	c.entries[path] = e
	c.mu.Unlock()
}

func (c *Cache) logReadErr(path string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		c.log.Debug("metacache: file gone", slog.String("path", path))
		return
	}
	c.log.Warn("metacache: read failed",
		slog.String("path", path), slog.String("error", err.Error()))
}
