// Package storage confines document and artifact I/O to the org root. Every
// write goes through a temp file in the destination directory, so readers
// never see a partial document.
package storage

import "time"

// FileInfo describes one file returned by List.
type FileInfo struct {
	Path       string // slash-separated, relative to the root
	Size       int64
	ModifiedAt time.Time
}

// Provider is the file access used by the generator and the org service.
// Paths are slash-separated and relative to Root. Missing files surface as
// errors matching fs.ErrNotExist.
type Provider interface {
	Root() string
	// List returns every file with extension ext under dir, in path order.
	List(dir, ext string) ([]FileInfo, error)
	Read(path string) ([]byte, error)
	// Write replaces path with content.
	Write(path string, content []byte) error
	// Create writes a new file and fails with apperr.ErrAlreadyExists when
	// path is taken.
	Create(path string, content []byte) error
	// Move writes content to a new file at to and removes from.
	Move(from, to string, content []byte) error
	Delete(path string) error
}

var _ Provider = (*FS)(nil)
