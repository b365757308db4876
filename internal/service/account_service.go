package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

// AccountService runs account lifecycle operations against the account store.
// Mutations are serialized per instance and retried when the store reports a
// version conflict.
type AccountService struct {
	store       repository.AccountStore
	rules       domain.Rules
	passwords   auth.PasswordPolicy
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time

	mu sync.Mutex
}

// AccountDependencies encapsulates collaborators for the account service.
type AccountDependencies struct {
	Store      repository.AccountStore
	Passwords  auth.PasswordPolicy
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	svc := &AccountService{
		store:       deps.Store,
		rules:       domain.NewRules(cfg.Accounts.PrimaryAdmin),
		passwords:   deps.Passwords,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		maxAttempts: cfg.Store.MaxWriteAttempts,
		now:         deps.Now,
	}
	if svc.passwords == nil {
		svc.passwords, _ = auth.NewPasswordPolicy(config.PasswordModePlaintext, 0)
	}
	if svc.dispatcher == nil {
		svc.dispatcher = events.NewInMemoryDispatcher()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.maxAttempts < 1 {
		svc.maxAttempts = 1
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// Register creates a pending, non-admin account.
func (s *AccountService) Register(ctx context.Context, username, password string) (domain.Account, error) {
	account, err := s.create(ctx, domain.NewAccount{Username: username, Password: password})
	if err != nil {
		return domain.Account{}, err
	}
	s.publish(ctx, events.EventAccountRegistered, account.Username, events.AccountCreatedPayload{
		Status:  string(account.Status),
		IsAdmin: account.IsAdmin,
	})
	return account, nil
}

// Create adds an account with caller-chosen status and role.
func (s *AccountService) Create(ctx context.Context, in domain.NewAccount) (domain.Account, error) {
	account, err := s.create(ctx, in)
	if err != nil {
		return domain.Account{}, err
	}
	s.publish(ctx, events.EventAccountCreated, account.Username, events.AccountCreatedPayload{
		Status:  string(account.Status),
		IsAdmin: account.IsAdmin,
	})
	return account, nil
}

// Authenticate checks credentials and approval status.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (domain.Principal, error) {
	snap, err := s.read(ctx, "authenticate")
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Authenticate(snap.Accounts, username, password, s.passwords.Matches)
}

// List returns every account as stored.
func (s *AccountService) List(ctx context.Context) ([]domain.Account, error) {
	snap, err := s.read(ctx, "list")
	if err != nil {
		return nil, err
	}
	return snap.Accounts, nil
}

// Stats counts accounts by status.
func (s *AccountService) Stats(ctx context.Context) (domain.Stats, error) {
	snap, err := s.read(ctx, "stats")
	if err != nil {
		return domain.Stats{}, err
	}
	return domain.ComputeStats(snap.Accounts), nil
}

// Approve sets the account to approved.
func (s *AccountService) Approve(ctx context.Context, username string) error {
	if err := s.mutate(ctx, "approve", func(accounts []domain.Account) ([]domain.Account, error) {
		return domain.Approve(accounts, username)
	}); err != nil {
		return err
	}
	s.publish(ctx, events.EventAccountApproved, username, nil)
	return nil
}

// Revoke revokes the account with an optional reason.
func (s *AccountService) Revoke(ctx context.Context, username, reason string) error {
	if err := s.rules.GuardRevoke(username); err != nil {
		return err
	}
	if reason == "" {
		reason = domain.DefaultRevocationReason
	}
	if err := s.mutate(ctx, "revoke", func(accounts []domain.Account) ([]domain.Account, error) {
		return s.rules.Revoke(accounts, username, reason, s.now())
	}); err != nil {
		return err
	}
	s.publish(ctx, events.EventAccountRevoked, username, events.AccountRevokedPayload{Reason: reason})
	return nil
}

// Restore re-approves a revoked account and clears its revocation fields.
func (s *AccountService) Restore(ctx context.Context, username string) error {
	if err := s.mutate(ctx, "restore", func(accounts []domain.Account) ([]domain.Account, error) {
		return domain.Restore(accounts, username)
	}); err != nil {
		return err
	}
	s.publish(ctx, events.EventAccountRestored, username, nil)
	return nil
}

// Delete removes the account permanently.
func (s *AccountService) Delete(ctx context.Context, username string) error {
	if err := s.rules.GuardDelete(username); err != nil {
		return err
	}
	removed := 0
	if err := s.mutate(ctx, "delete", func(accounts []domain.Account) ([]domain.Account, error) {
		next, err := s.rules.Delete(accounts, username)
		if err != nil {
			return nil, err
		}
		removed = len(accounts) - len(next)
		return next, nil
	}); err != nil {
		return err
	}
	s.publish(ctx, events.EventAccountDeleted, username, events.AccountDeletedPayload{Removed: removed})
	return nil
}

// Ping checks the account store.
func (s *AccountService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *AccountService) create(ctx context.Context, in domain.NewAccount) (domain.Account, error) {
	if err := domain.ValidateCredentials(in.Username, in.Password); err != nil {
		return domain.Account{}, err
	}
	stored, err := s.passwords.Prepare(in.Password)
	if err != nil {
		return domain.Account{}, apperrors.NewInternalError(err)
	}
	in.Password = stored

	var created domain.Account
	err = s.mutate(ctx, "create", func(accounts []domain.Account) ([]domain.Account, error) {
		next, account, err := s.rules.Create(accounts, in, s.now())
		if err != nil {
			return nil, err
		}
		created = account
		return next, nil
	})
	return created, err
}

func (s *AccountService) read(ctx context.Context, op string) (repository.Snapshot, error) {
	snap, err := s.store.ReadAll(ctx)
	if err != nil {
		s.logger.Error("read accounts", zap.String("op", op), zap.Error(err))
		return repository.Snapshot{}, apperrors.NewStoreUnavailable(err)
	}
	return snap, nil
}

// mutate reads the latest snapshot, applies fn and writes the result back
// conditioned on the snapshot version.
func (s *AccountService) mutate(ctx context.Context, op string, fn func([]domain.Account) ([]domain.Account, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		snap, err := s.read(ctx, op)
		if err != nil {
			return err
		}
		next, err := fn(snap.Accounts)
		if err != nil {
			return err
		}

		_, err = s.store.WriteAll(ctx, next, snap.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			s.logger.Error("write accounts", zap.String("op", op), zap.Error(err))
			return apperrors.NewStoreUnavailable(err)
		}
		lastErr = err
		s.logger.Warn("account document changed concurrently, retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Int("max_attempts", s.maxAttempts))
	}
	return apperrors.NewStoreConflict(lastErr)
}

func (s *AccountService) publish(ctx context.Context, eventType events.EventType, username string, payload any) {
	event := events.NewEvent(eventType, username, s.now().UTC(), payload)
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
