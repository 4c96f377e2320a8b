package index

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/parser"
	"github.com/starford/almanac/internal/query"
	"github.com/starford/almanac/internal/recurrence"
	"github.com/starford/almanac/internal/storage"
)

// parsed is the result of reading one changed file.
type parsed struct {
	task *models.Task // nil when the file is not a task
	gone bool         // the file vanished or could not be read
}

// rebuild brings the index up to date with the notes directory:
//   - files that are new or whose modification time moved are parsed
//   - files that lost the task tag or disappeared are removed
//   - unchanged records are carried over as-is
//
// The caller must hold the indexing flag.
func (x *Indexer) rebuild() (Stats, *Snapshot, error) {
	start := time.Now()
	ref := models.Day(x.now())

	paths, err := x.scanner.Scan()
	if err != nil {
		return Stats{}, nil, fmt.Errorf("index: rebuild: %w", err)
	}

	times := make(map[string]time.Time, len(paths))
	var changed []string
	for _, p := range paths {
		mt, err := storage.ModTime(x.store, p)
		if err != nil {
			x.logGone(p, err)
			continue
		}
		times[p] = mt
		if prev, ok := x.modTimes[p]; !ok || !mt.Equal(prev) {
			changed = append(changed, p)
		}
	}

	results := make([]parsed, len(changed))
	var g errgroup.Group
	g.SetLimit(x.workers)
	for i, p := range changed {
		g.Go(func() error {
			results[i] = x.parseFile(p, times[p])
			return nil
		})
	}
	_ = g.Wait()

	records := make(map[string]*models.Task, len(x.records))
	for p, t := range x.records {
		if _, ok := times[p]; ok {
			records[p] = t
		}
	}
	encoded := make(map[string]string, len(x.encoded))
	for p, e := range x.encoded {
		if _, ok := records[p]; ok {
			encoded[p] = e
		}
	}
	for i, p := range changed {
		res := results[i]
		if res.gone {
			delete(times, p)
		}
		if res.task == nil {
			delete(records, p)
			delete(encoded, p)
			continue
		}
		records[p] = res.task
		delete(encoded, p)
	}

	tasks := make([]*models.Task, 0, len(records))
	for _, p := range paths {
		if t, ok := records[p]; ok {
			tasks = append(tasks, t)
		}
	}
	query.Sort(tasks, ref)

	snap := &Snapshot{
		Tasks:   tasks,
		Date:    ref,
		Files:   len(times),
		BuiltAt: x.now(),
		byPath:  records,
	}
	x.snapshot.Store(snap)

	stats := Stats{
		Scanned:  len(paths),
		Parsed:   len(changed),
		Removed:  len(x.records) - countKept(x.records, records),
		Tasks:    len(tasks),
		Duration: time.Since(start),
	}
	x.modTimes = times
	x.records = records
	x.encoded = encoded
	x.saveState()
	return stats, snap, nil
}

// countKept returns how many paths of prev are still present in next.
func countKept(prev, next map[string]*models.Task) int {
	n := 0
	for p := range prev {
		if _, ok := next[p]; ok {
			n++
		}
	}
	return n
}

// parseFile reads and decodes one file. It touches no shared state.
func (x *Indexer) parseFile(path string, mt time.Time) parsed {
	data, err := x.store.Read(path)
	if err != nil {
		x.logGone(path, err)
		return parsed{gone: true}
	}
	fm, err := parser.Parse(data)
	if err != nil {
		x.logger.Warn("index: malformed frontmatter",
			slog.String("path", path), slog.String("error", err.Error()))
		return parsed{}
	}
	if !fm.IsTask() {
		return parsed{}
	}
	for _, w := range recurrence.Warnings(fm) {
		x.logger.Warn("index: invalid task field",
			slog.String("path", path), slog.String("warning", w.Error()))
	}
	return parsed{task: &models.Task{Path: path, ModTime: mt, Frontmatter: *fm}}
}

func (x *Indexer) logGone(path string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		x.logger.Debug("index: file vanished", slog.String("path", path))
		return
	}
	x.logger.Warn("index: file unreadable",
		slog.String("path", path), slog.String("error", err.Error()))
}

// warmStart seeds the previous record set from the state store and
// publishes it. Entries whose stored frontmatter no longer decodes are
// dropped so the file is read again.
func (x *Indexer) warmStart() {
	entries, err := x.state.Load()
	if err != nil {
		x.logger.Warn("index: load state failed, cold start", slog.String("error", err.Error()))
		return
	}
	for p, e := range entries {
		if e.Frontmatter == "" {
			x.modTimes[p] = e.ModTime
			continue
		}
		fm, err := parser.ParseBlock([]byte(e.Frontmatter))
		if err != nil || !fm.IsTask() {
			continue
		}
		x.modTimes[p] = e.ModTime
		x.records[p] = &models.Task{Path: p, ModTime: e.ModTime, Frontmatter: *fm}
		x.encoded[p] = e.Frontmatter
	}

	paths := make([]string, 0, len(x.records))
	for p := range x.records {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	tasks := make([]*models.Task, 0, len(paths))
	for _, p := range paths {
		tasks = append(tasks, x.records[p])
	}
	ref := models.Day(x.now())
	query.Sort(tasks, ref)

	byPath := make(map[string]*models.Task, len(x.records))
	for p, t := range x.records {
		byPath[p] = t
	}
	x.snapshot.Store(&Snapshot{
		Tasks:   tasks,
		Date:    ref,
		Files:   len(x.modTimes),
		BuiltAt: x.now(),
		byPath:  byPath,
	})
	x.logger.Info("index: warm start",
		slog.Int("files", len(x.modTimes)), slog.Int("tasks", len(tasks)))
}

// saveState persists the modification-time snapshot with each task's
// frontmatter. Failures are logged; the next run starts cold.
func (x *Indexer) saveState() {
	if x.state == nil {
		return
	}
	entries := make(map[string]StateEntry, len(x.modTimes))
	for p, mt := range x.modTimes {
		e := StateEntry{ModTime: mt}
		if t, ok := x.records[p]; ok {
			enc, ok := x.encoded[p]
			if !ok {
				out, err := yaml.Marshal(&t.Frontmatter)
				if err != nil {
					x.logger.Warn("index: encode state failed",
						slog.String("path", p), slog.String("error", err.Error()))
					continue
				}
				enc = string(out)
				x.encoded[p] = enc
			}
			e.Frontmatter = enc
		}
		entries[p] = e
	}
	if err := x.state.Save(entries); err != nil {
		x.logger.Warn("index: save state failed", slog.String("error", err.Error()))
	}
}
