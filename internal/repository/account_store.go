package repository

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/account-service/internal/domain"
)

// ErrVersionConflict is returned by WriteAll when the backing document changed
// since the version the caller read.
var ErrVersionConflict = errors.New("account store: version conflict")

// Snapshot is the full account sequence together with the version it was read at.
type Snapshot struct {
	Accounts []domain.Account
	Version  string
}

// AccountStore persists the account sequence as a single document.
type AccountStore interface {
	// ReadAll returns the persisted sequence, initializing an empty document
	// when none exists yet.
	ReadAll(ctx context.Context) (Snapshot, error)
	// WriteAll replaces the document. A non-empty expectedVersion makes the write
	// conditional; on mismatch it returns ErrVersionConflict and writes nothing.
	WriteAll(ctx context.Context, accounts []domain.Account, expectedVersion string) (string, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// emptyDocument is what a fresh store holds.
var emptyDocument = []byte("[]")

// EncodeAccounts renders the document: a JSON array, two-space indent, no HTML escaping.
func EncodeAccounts(accounts []domain.Account) ([]byte, error) {
	if accounts == nil {
		accounts = []domain.Account{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(accounts); err != nil {
		return nil, fmt.Errorf("encode accounts: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// DecodeAccounts parses a document. Blank or null documents are empty.
func DecodeAccounts(raw []byte) ([]domain.Account, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []domain.Account{}, nil
	}
	var accounts []domain.Account
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

// contentVersion is the version token for backends without a native one.
func contentVersion(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
