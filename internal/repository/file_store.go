package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/spec-kit/account-service/internal/domain"
)

// FileStore keeps the document in a local JSON file. Versions are content
// hashes; writes go through a temp file and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. Nothing is touched until the first read.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) ReadAll(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readOrInit()
	if err != nil {
		return Snapshot{}, err
	}
	accounts, err := DecodeAccounts(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", s.path, err)
	}
	return Snapshot{Accounts: accounts, Version: contentVersion(raw)}, nil
}

func (s *FileStore) WriteAll(_ context.Context, accounts []domain.Account, expectedVersion string) (string, error) {
	payload, err := EncodeAccounts(accounts)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expectedVersion != "" {
		current, err := s.readOrInit()
		if err != nil {
			return "", err
		}
		if contentVersion(current) != expectedVersion {
			return "", ErrVersionConflict
		}
	}
	if err := s.replace(payload); err != nil {
		return "", err
	}
	return contentVersion(payload), nil
}

// Ping checks that the directory holding the file exists or can be created.
func (s *FileStore) Ping(context.Context) error {
	return os.MkdirAll(filepath.Dir(s.path), 0o755)
}

func (s *FileStore) readOrInit() ([]byte, error) {
	raw, err := os.ReadFile(s.path)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if err := s.replace(emptyDocument); err != nil {
		return nil, err
	}
	return emptyDocument, nil
}

func (s *FileStore) replace(payload []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
