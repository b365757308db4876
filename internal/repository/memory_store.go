package repository

import (
	"context"
	"strconv"
	"sync"

	"github.com/spec-kit/account-service/internal/domain"
)

// MemoryStore keeps the document in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	accounts []domain.Account
	version  int64
}

// NewMemoryStore returns a store seeded with accounts.
func NewMemoryStore(accounts ...domain.Account) *MemoryStore {
	return &MemoryStore{accounts: append([]domain.Account{}, accounts...), version: 1}
}

func (s *MemoryStore) ReadAll(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Accounts: append([]domain.Account{}, s.accounts...),
		Version:  strconv.FormatInt(s.version, 10),
	}, nil
}

func (s *MemoryStore) WriteAll(_ context.Context, accounts []domain.Account, expectedVersion string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expectedVersion != "" && expectedVersion != strconv.FormatInt(s.version, 10) {
		return "", ErrVersionConflict
	}
	s.accounts = append([]domain.Account{}, accounts...)
	s.version++
	return strconv.FormatInt(s.version, 10), nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
