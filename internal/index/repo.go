package index

import (
	"fmt"
	"time"
)

// Load returns every stored entry.
func (s *SQLiteState) Load() (map[string]StateEntry, error) {
	rows, err := s.conn.Query(`SELECT path, mod_time, frontmatter FROM index_state`)
	if err != nil {
		return nil, fmt.Errorf("index: load state: %w", err)
	}
	defer rows.Close()

	out := make(map[string]StateEntry)
	for rows.Next() {
		var (
			path string
			mt   time.Time
			fm   string
		)
		if err := rows.Scan(&path, &mt, &fm); err != nil {
			return nil, fmt.Errorf("index: scan state: %w", err)
		}
		out[path] = StateEntry{ModTime: mt, Frontmatter: fm}
	}
	return out, rows.Err()
}

// Save replaces the stored snapshot within a transaction. Rows whose
// modification time is unchanged are left alone.
func (s *SQLiteState) Save(entries map[string]StateEntry) error {
	current, err := s.Load()
	if err != nil {
		return err
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	upsert, err := tx.Prepare(`
		INSERT INTO index_state (path, mod_time, frontmatter)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			mod_time    = excluded.mod_time,
			frontmatter = excluded.frontmatter
	`)
	if err != nil {
		return fmt.Errorf("index: prepare upsert: %w", err)
	}
	defer upsert.Close()

	for p, e := range entries {
		if old, ok := current[p]; ok && old.ModTime.Equal(e.ModTime) && old.Frontmatter == e.Frontmatter {
			continue
		}
		if _, err := upsert.Exec(p, e.ModTime, e.Frontmatter); err != nil {
			return fmt.Errorf("index: upsert state %s: %w", p, err)
		}
	}
	for p := range current {
		if _, ok := entries[p]; ok {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM index_state WHERE path = ?`, p); err != nil {
			return fmt.Errorf("index: delete state %s: %w", p, err)
		}
	}
	return tx.Commit()
}
