package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const stateSchemaSQL = `
CREATE TABLE IF NOT EXISTS index_state (
	path        TEXT PRIMARY KEY,
	mod_time    DATETIME NOT NULL,
	frontmatter TEXT NOT NULL DEFAULT ''
);
`

// SQLiteState stores the snapshot in a SQLite database.
type SQLiteState struct {
	conn *sql.DB
}

// OpenSQLiteState opens (or creates) the database at path and applies the schema.
func OpenSQLiteState(path string) (*SQLiteState, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: mkdir state dir: %w", err)
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(stateSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply state schema: %w", err)
	}
	return &SQLiteState{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteState) Close() error {
	return s.conn.Close()
}
