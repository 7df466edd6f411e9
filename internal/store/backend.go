package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/stellarlinkco/leakguard/internal/config"
)

// ErrDocNotFound is returned by Backend.Load for a document never saved.
var ErrDocNotFound = errors.New("document not found")

// Backend persists whole documents by name. Save must replace the previous
// version atomically: a concurrent or later Load sees either the old bytes or
// the new bytes, never a mix.
type Backend interface {
	Load(doc string) ([]byte, error)
	Save(doc string, data []byte) error
	Close() error
}

// OpenBackend opens the backend selected in cfg under cfg.DataDir.
func OpenBackend(cfg config.StoreConfig, logger zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.StoreBackendFile, "":
		return NewFileBackend(cfg.DataDir)
	case config.StoreBackendBadger:
		return NewBadgerBackend(filepath.Join(cfg.DataDir, "badger"), logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// FileBackend keeps each document in <dir>/<doc>.json.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(doc string) string {
	return filepath.Join(f.dir, doc+".json")
}

func (f *FileBackend) Load(doc string) ([]byte, error) {
	data, err := os.ReadFile(f.path(doc))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save writes to a temp file in the same directory, syncs it and renames it
// over the target.
func (f *FileBackend) Save(doc string, data []byte) error {
	file, err := os.CreateTemp(f.dir, doc+".*.tmp")
	if err != nil {
		return err
	}
	tmpFile := file.Name()

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	if err = os.Rename(tmpFile, f.path(doc)); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}

func (f *FileBackend) Close() error {
	return nil
}
