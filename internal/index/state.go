package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/starford/almanac/internal/storage"
)

// StateEntry is the persisted view of one scanned file.
type StateEntry struct {
	ModTime time.Time `json:"mod_time"`
	// Frontmatter is the YAML of a task's frontmatter; empty for non-tasks.
	Frontmatter string `json:"frontmatter,omitempty"`
}

// StateStore persists the modification-time snapshot between runs so a
// restart can skip reparsing unchanged files.
type StateStore interface {
	Load() (map[string]StateEntry, error)
	Save(entries map[string]StateEntry) error
	Close() error
}

// State backends.
const (
	StateNone   = "none"
	StateJSON   = "json"
	StateSQLite = "sqlite"
)

// OpenState opens the state store for backend at path. The "none" backend
// returns nil.
func OpenState(backend, path string) (StateStore, error) {
	switch backend {
	case StateNone, "":
		return nil, nil
	case StateJSON:
		return NewJSONState(path), nil
	case StateSQLite:
		st, err := OpenSQLiteState(path)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("index: unknown state backend %q", backend)
	}
}

const stateVersion = 1

type stateFile struct {
	Version int                   `json:"version"`
	Files   map[string]StateEntry `json:"files"`
}

// JSONState stores the snapshot in a single JSON file.
type JSONState struct {
	path string
}

// NewJSONState returns a store backed by the file at path.
func NewJSONState(path string) *JSONState {
	return &JSONState{path: path}
}

// Load reads the state file. A missing file yields an empty snapshot.
func (s *JSONState) Load() (map[string]StateEntry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]StateEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: read state: %w", err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("index: decode state: %w", err)
	}
	if f.Version != stateVersion {
		return map[string]StateEntry{}, nil
	}
	if f.Files == nil {
		f.Files = map[string]StateEntry{}
	}
	return f.Files, nil
}

// Save atomically replaces the state file.
func (s *JSONState) Save(entries map[string]StateEntry) error {
	data, err := json.Marshal(stateFile{Version: stateVersion, Files: entries})
	if err != nil {
		return fmt.Errorf("index: encode state: %w", err)
	}
	if err := storage.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("index: write state: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *JSONState) Close() error { return nil }
