package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileStore keeps the ATH as a decimal string in a single text file.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileStore builds a file-backed store at path.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "file_store").Str("path", path).Logger(),
	}
}

// Path returns the location of the state file.
func (s *FileStore) Path() string { return s.path }

// Load returns the stored value, or 0 when the file is absent or unparsable.
func (s *FileStore) Load(ctx context.Context) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() uint64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Msg("no state file yet; baseline 0")
		} else {
			s.logger.Warn().Err(err).Msg("state file unreadable; baseline 0")
		}
		return 0
	}
	v, err := parseValue(string(data))
	if err != nil {
		s.logger.Warn().Err(err).Msg("state file corrupt; baseline 0")
		return 0
	}
	return v
}

// Save overwrites the file with value if it exceeds the stored record.
func (s *FileStore) Save(ctx context.Context, value uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.loadLocked(); value <= current {
		return ErrNotAdvanced
	}
	if err := writeFileAtomic(s.path, []byte(formatValue(value))); err != nil {
		return fmt.Errorf("save ath: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a sibling temp file, fsyncs it and renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	// best effort: fsync the directory so the rename is durable
	if d, openErr := os.Open(dir); openErr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

var _ Store = (*FileStore)(nil)
