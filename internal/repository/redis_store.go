package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/account-service/internal/domain"
)

// RedisStore keeps the document in a single key. Conditional writes compare the
// content hash under WATCH and commit with MULTI/EXEC.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore returns a store for key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) ReadAll(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		if err := s.client.SetNX(ctx, s.key, emptyDocument, 0).Err(); err != nil {
			return Snapshot{}, fmt.Errorf("initialize %s: %w", s.key, err)
		}
		raw, err = s.client.Get(ctx, s.key).Bytes()
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", s.key, err)
	}

	accounts, err := DecodeAccounts(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", s.key, err)
	}
	return Snapshot{Accounts: accounts, Version: contentVersion(raw)}, nil
}

func (s *RedisStore) WriteAll(ctx context.Context, accounts []domain.Account, expectedVersion string) (string, error) {
	payload, err := EncodeAccounts(accounts)
	if err != nil {
		return "", err
	}

	txf := func(tx *redis.Tx) error {
		if expectedVersion != "" {
			current, err := tx.Get(ctx, s.key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if errors.Is(err, redis.Nil) || contentVersion(current) != expectedVersion {
				return ErrVersionConflict
			}
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, payload, 0)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, s.key)
	switch {
	case errors.Is(err, redis.TxFailedErr), errors.Is(err, ErrVersionConflict):
		return "", ErrVersionConflict
	case err != nil:
		return "", fmt.Errorf("write %s: %w", s.key, err)
	}
	return contentVersion(payload), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
