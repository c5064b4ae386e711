// Package storage holds uploaded question media (images for image-type
// questions) on the local filesystem.
package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type MediaStore interface {
	// Put stores the media under a fresh key derived from the original
	// file extension and returns that key.
	Put(ext string, r io.Reader) (string, error)
	Get(key string) (io.ReadCloser, error)
}

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data"
	}
	if err := os.MkdirAll(filepath.Join(base, "media"), 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(ext string, r io.Reader) (string, error) {
	if ext == "" {
		return "", errors.New("missing file extension")
	}
	key := filepath.Join("media", uuid.NewString()+ext)
	f, err := os.Create(filepath.Join(s.base, key))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, filepath.Clean(key)))
}
