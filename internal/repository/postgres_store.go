package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/account-service/internal/domain"
)

// PostgresStore keeps the document as one row of account_documents. The row's
// version column is the version token.
type PostgresStore struct {
	pool *pgxpool.Pool
	name string
}

// NewPostgresStore returns a store for the document called name.
func NewPostgresStore(pool *pgxpool.Pool, name string) *PostgresStore {
	if name == "" {
		name = "users"
	}
	return &PostgresStore{pool: pool, name: name}
}

func (s *PostgresStore) ReadAll(ctx context.Context) (Snapshot, error) {
	body, version, err := s.selectDocument(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		const insert = `
        INSERT INTO account_documents (name, body, version)
        VALUES ($1, '[]', 1)
        ON CONFLICT (name) DO NOTHING`
		if _, err := s.pool.Exec(ctx, insert, s.name); err != nil {
			return Snapshot{}, fmt.Errorf("initialize document %s: %w", s.name, err)
		}
		body, version, err = s.selectDocument(ctx)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read document %s: %w", s.name, err)
	}

	accounts, err := DecodeAccounts([]byte(body))
	if err != nil {
		return Snapshot{}, fmt.Errorf("document %s: %w", s.name, err)
	}
	return Snapshot{Accounts: accounts, Version: strconv.FormatInt(version, 10)}, nil
}

func (s *PostgresStore) WriteAll(ctx context.Context, accounts []domain.Account, expectedVersion string) (string, error) {
	payload, err := EncodeAccounts(accounts)
	if err != nil {
		return "", err
	}

	var version int64
	if expectedVersion == "" {
		const upsert = `
        INSERT INTO account_documents (name, body, version)
        VALUES ($1, $2, 1)
        ON CONFLICT (name) DO UPDATE
        SET body = EXCLUDED.body, version = account_documents.version + 1, updated_at = NOW()
        RETURNING version`
		if err := s.pool.QueryRow(ctx, upsert, s.name, string(payload)).Scan(&version); err != nil {
			return "", fmt.Errorf("write document %s: %w", s.name, err)
		}
		return strconv.FormatInt(version, 10), nil
	}

	expected, err := strconv.ParseInt(expectedVersion, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed version %q", ErrVersionConflict, expectedVersion)
	}

	const update = `
        UPDATE account_documents
        SET body = $1, version = version + 1, updated_at = NOW()
        WHERE name = $2 AND version = $3
        RETURNING version`
	err = s.pool.QueryRow(ctx, update, string(payload), s.name, expected).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrVersionConflict
	}
	if err != nil {
		return "", fmt.Errorf("write document %s: %w", s.name, err)
	}
	return strconv.FormatInt(version, 10), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) selectDocument(ctx context.Context) (string, int64, error) {
	const query = `SELECT body, version FROM account_documents WHERE name = $1`

	var (
		body    string
		version int64
	)
	if err := s.pool.QueryRow(ctx, query, s.name).Scan(&body, &version); err != nil {
		return "", 0, err
	}
	return body, version, nil
}
