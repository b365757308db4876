package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

// DegradingStore swallows backend failures: reads fall back to an empty
// sequence and writes become no-ops. Callers then cannot tell an empty store
// from an unavailable one. Version conflicts still propagate.
//
// A write based on a failed read is dropped without reaching the backend, so
// the empty fallback never replaces the real document.
// unreadVersion tags the empty snapshot served after a failed read.
const unreadVersion = "degraded:unread"

type DegradingStore struct {
	next   AccountStore
	logger *zap.Logger
}

// NewDegradingStore wraps next.
func NewDegradingStore(next AccountStore, logger *zap.Logger) *DegradingStore {
	return &DegradingStore{next: next, logger: logger}
}

func (s *DegradingStore) ReadAll(ctx context.Context) (Snapshot, error) {
	snap, err := s.next.ReadAll(ctx)
	if err != nil {
		s.logger.Error("error reading accounts, serving empty list", zap.Error(err))
		return Snapshot{Accounts: []domain.Account{}, Version: unreadVersion}, nil
	}
	return snap, nil
}

func (s *DegradingStore) WriteAll(ctx context.Context, accounts []domain.Account, expectedVersion string) (string, error) {
	if expectedVersion == unreadVersion {
		s.logger.Error("accounts were not read, dropping update", zap.Int("accounts", len(accounts)))
		return expectedVersion, nil
	}
	version, err := s.next.WriteAll(ctx, accounts, expectedVersion)
	if errors.Is(err, ErrVersionConflict) {
		return "", err
	}
	if err != nil {
		s.logger.Error("error writing accounts, dropping update", zap.Error(err), zap.Int("accounts", len(accounts)))
		return expectedVersion, nil
	}
	return version, nil
}

func (s *DegradingStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
