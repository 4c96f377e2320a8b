// Package storage defines the notes directory file-system abstraction.
package storage

import (
	"io/fs"
	"time"
)

// Provider is the interface for note file operations.
// All paths are relative to the provider root and use forward slashes.
type Provider interface {
	// List returns the path of every .md file under dir in lexicographic order.
	List(dir string) ([]string, error)
	// Stat returns the file's metadata.
	Stat(path string) (fs.FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path with content.
	Write(path string, content []byte) error
	// Create writes a new file and fails with apperr.ErrAlreadyExists if
	// path is taken.
	Create(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Root returns the absolute directory the provider is rooted at.
	Root() string
}

// ModTime returns the modification time of path.
func ModTime(p Provider, path string) (time.Time, error) {
	info, err := p.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
