package domain

import (
	"fmt"
	"time"

	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// DefaultPrimaryAdmin is the username that can never be revoked or deleted.
const DefaultPrimaryAdmin = "DG143"

// NewAccount is the input for admin-driven account creation.
type NewAccount struct {
	Username string
	Password string
	Status   AccountStatus
	Role     string
}

// Rules applies account lifecycle transitions to an in-memory account sequence.
// Every method returns a fresh slice and leaves its input untouched.
type Rules struct {
	PrimaryAdmin string
}

// NewRules returns Rules guarding primaryAdmin, or DefaultPrimaryAdmin when empty.
func NewRules(primaryAdmin string) Rules {
	if primaryAdmin == "" {
		primaryAdmin = DefaultPrimaryAdmin
	}
	return Rules{PrimaryAdmin: primaryAdmin}
}

// ValidateCredentials rejects empty usernames or passwords.
func ValidateCredentials(username, password string) error {
	if username == "" || password == "" {
		return apperrors.NewValidationError("Username and password are required.", nil)
	}
	return nil
}

// Register appends a pending, non-admin account.
func (r Rules) Register(accounts []Account, username, password string, now time.Time) ([]Account, Account, error) {
	return r.Create(accounts, NewAccount{Username: username, Password: password}, now)
}

// Create appends an account with caller-chosen status and role.
func (r Rules) Create(accounts []Account, in NewAccount, now time.Time) ([]Account, Account, error) {
	if err := ValidateCredentials(in.Username, in.Password); err != nil {
		return nil, Account{}, err
	}
	status := in.Status
	if status == "" {
		status = AccountStatusPending
	}
	if !status.Valid() {
		return nil, Account{}, apperrors.NewValidationError("Status must be pending, approved or revoked.",
			map[string]any{"status": string(status)})
	}
	if indexOf(accounts, in.Username) >= 0 {
		return nil, Account{}, apperrors.NewConflict("Username already exists.", nil)
	}

	now = Timestamp(now)
	account := Account{
		Username: in.Username,
		Password: in.Password,
		IsAdmin:  in.Role == RoleAdmin,
		Status:   status,
		Joined:   NewTime(now),
	}
	if status == AccountStatusRevoked {
		markRevoked(&account, "", now)
	}

	next := make([]Account, 0, len(accounts)+1)
	next = append(next, accounts...)
	next = append(next, account)
	return next, account, nil
}

// Authenticate finds the first account matching both username and password and
// checks that it may log in.
func Authenticate(accounts []Account, username, password string, match PasswordMatcher) (Principal, error) {
	if match == nil {
		match = ExactMatch
	}
	for _, account := range accounts {
		if account.Username != username || !match(account.Password, password) {
			continue
		}
		switch account.Status {
		case AccountStatusPending:
			return Principal{}, apperrors.NewPendingApproval()
		case AccountStatusRevoked:
			return Principal{}, apperrors.NewAccountRevoked(account.RevocationReason)
		}
		return Principal{Username: account.Username, IsAdmin: account.IsAdmin}, nil
	}
	return Principal{}, apperrors.NewInvalidCredentials()
}

// Approve forces the account to approved. Revocation fields are left as they are,
// unlike Restore.
func Approve(accounts []Account, username string) ([]Account, error) {
	return update(accounts, username, func(a *Account) {
		a.Status = AccountStatusApproved
	})
}

// GuardRevoke rejects revoking the primary admin, whatever its stored state.
func (r Rules) GuardRevoke(username string) error {
	if username == r.PrimaryAdmin {
		return apperrors.NewProtectedAccount("Cannot revoke the primary admin.")
	}
	return nil
}

// GuardDelete rejects deleting the primary admin, whatever its stored state.
func (r Rules) GuardDelete(username string) error {
	if username == r.PrimaryAdmin {
		return apperrors.NewProtectedAccount("Cannot delete the primary admin.")
	}
	return nil
}

// Revoke marks the account revoked with reason, or DefaultRevocationReason when empty.
func (r Rules) Revoke(accounts []Account, username, reason string, now time.Time) ([]Account, error) {
	if err := r.GuardRevoke(username); err != nil {
		return nil, err
	}
	return update(accounts, username, func(a *Account) {
		markRevoked(a, reason, Timestamp(now))
	})
}

// Restore approves the account and clears revocation fields.
func Restore(accounts []Account, username string) ([]Account, error) {
	return update(accounts, username, func(a *Account) {
		a.Status = AccountStatusApproved
		a.RevocationReason = nil
		a.RevokedAt = nil
		a.Extra = withoutExtra(a.Extra, "revocationReason", "revokedAt")
	})
}

// Delete removes every account named username.
func (r Rules) Delete(accounts []Account, username string) ([]Account, error) {
	if err := r.GuardDelete(username); err != nil {
		return nil, err
	}
	next := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		if account.Username != username {
			next = append(next, account)
		}
	}
	if len(next) == len(accounts) {
		return nil, userNotFound(username)
	}
	return next, nil
}

// ComputeStats counts accounts by status in a single pass.
func ComputeStats(accounts []Account) Stats {
	stats := Stats{Total: len(accounts)}
	for _, account := range accounts {
		switch account.Status {
		case AccountStatusPending:
			stats.Pending++
		case AccountStatusApproved:
			stats.Approved++
		case AccountStatusRevoked:
			stats.Revoked++
		}
	}
	return stats
}

func markRevoked(a *Account, reason string, at time.Time) {
	if reason == "" {
		reason = DefaultRevocationReason
	}
	revokedAt := NewTime(at)
	a.Status = AccountStatusRevoked
	a.RevocationReason = &reason
	a.RevokedAt = &revokedAt
}

func update(accounts []Account, username string, fn func(*Account)) ([]Account, error) {
	idx := indexOf(accounts, username)
	if idx < 0 {
		return nil, userNotFound(username)
	}
	next := make([]Account, len(accounts))
	copy(next, accounts)
	fn(&next[idx])
	return next, nil
}

func indexOf(accounts []Account, username string) int {
	for i := range accounts {
		if accounts[i].Username == username {
			return i
		}
	}
	return -1
}

func userNotFound(username string) error {
	err := apperrors.NewNotFound("User not found.").(*apperrors.DomainError)
	err.Err = fmt.Errorf("username %q", username)
	return err
}
