// Package storage is a small blob-store abstraction for diagnosis artifacts
// (uploaded X-rays, heatmaps, enhanced renditions). Artifacts live either on
// the local filesystem or in a GCS bucket.
package storage

import (
	"errors"
	"io"
	"io/fs"
	"time"
)

// Storage is an abstraction of a blob store.
type Storage interface {
	// When finished, you must close the WriteCloser
	WriteFile(name string) (io.WriteCloser, error)

	// When finished, you must close File.Reader
	ReadFile(name string) (*File, error)

	DeleteFile(name string) error
}

// File is an element in blob storage.
type File struct {
	Reader     io.ReadCloser
	ModifiedAt time.Time
	Size       int64
}

// WriteFile writes the whole of content into the store under name.
func WriteFile(s Storage, name string, content io.Reader) error {
	f, err := s.WriteFile(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, content)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

// ReadFile reads an entire file out of the store.
func ReadFile(s Storage, name string) ([]byte, error) {
	f, err := s.ReadFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Reader.Close()
	return io.ReadAll(f.Reader)
}

// IsNotExist reports whether err means the named file is absent from the
// store. Both backends normalize their miss errors to fs.ErrNotExist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
