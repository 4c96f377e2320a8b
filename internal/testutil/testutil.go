// Package testutil provides shared test helpers for setting up note directories.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/almanac/internal/storage"
)

// TestVault creates a temporary notes directory with a storage.Provider.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteNote writes content to rel under root, creating parent directories.
func WriteNote(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Touch sets the modification time of rel under root.
func Touch(t *testing.T, root, rel string, mt time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.Chtimes(p, mt, mt); err != nil {
		t.Fatal(err)
	}
}

// ReadNote returns the content of rel under root.
func ReadNote(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// Task returns a note body with task frontmatter built from the given
// YAML lines.
func Task(lines string) string {
	return "---\ntags: [task]\n" + lines + "---\n# body\n"
}

// Eventually polls cond until it returns true or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
