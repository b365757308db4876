package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/domain"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/repository"
	apperrors "github.com/spec-kit/account-service/pkg/util/errorutil"
)

var testNow = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{
		Store:    config.StoreConfig{MaxWriteAttempts: 3},
		Accounts: config.AccountsConfig{PrimaryAdmin: domain.DefaultPrimaryAdmin},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) subscribe(d events.Dispatcher) {
	for _, et := range []events.EventType{
		events.EventAccountRegistered, events.EventAccountCreated, events.EventAccountApproved,
		events.EventAccountRevoked, events.EventAccountRestored, events.EventAccountDeleted,
	} {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
			return nil
		})
	}
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T, store repository.AccountStore) (*AccountService, *recorder) {
	t.Helper()
	dispatcher := events.NewInMemoryDispatcher()
	rec := &recorder{}
	rec.subscribe(dispatcher)
	svc := NewAccountService(testConfig(), AccountDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Now:        func() time.Time { return testNow },
	})
	return svc, rec
}

func TestLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, repository.NewMemoryStore())

	account, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusPending, account.Status)
	assert.False(t, account.IsAdmin)

	_, err = svc.Authenticate(ctx, "alice", "pw")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePendingApproval))

	require.NoError(t, svc.Approve(ctx, "alice"))
	principal, err := svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{Username: "alice"}, principal)

	require.NoError(t, svc.Revoke(ctx, "alice", "spam"))
	_, err = svc.Authenticate(ctx, "alice", "pw")
	require.True(t, apperrors.HasCode(err, apperrors.CodeAccountRevoked))
	assert.Equal(t, "spam", apperrors.ToDomainError(err).Details["reason"])

	require.NoError(t, svc.Restore(ctx, "alice"))
	_, err = svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)

	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Nil(t, accounts[0].RevocationReason)
	assert.Nil(t, accounts[0].RevokedAt)

	assert.Equal(t, []events.EventType{
		events.EventAccountRegistered, events.EventAccountApproved, events.EventAccountRevoked, events.EventAccountRestored,
	}, rec.types())
}

func TestRegisterDuplicateKeepsStore(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, repository.NewMemoryStore())

	_, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "pw2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Len(t, rec.types(), 1)
}

func TestCreateAndStats(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, repository.NewMemoryStore())

	admin, err := svc.Create(ctx, domain.NewAccount{Username: "DG143", Password: "root", Status: domain.AccountStatusApproved, Role: "admin"})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	_, err = svc.Create(ctx, domain.NewAccount{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.NewAccount{Username: "eve", Password: "pw", Status: domain.AccountStatusRevoked})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{Total: 3, Pending: 1, Approved: 1, Revoked: 1}, stats)
	assert.Equal(t, []events.EventType{events.EventAccountCreated, events.EventAccountCreated, events.EventAccountCreated}, rec.types())
}

func TestPrimaryAdminGuardSkipsStore(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{AccountStore: repository.NewMemoryStore(), readErr: errors.New("store down")}
	svc, _ := newTestService(t, store)

	assert.True(t, apperrors.HasCode(svc.Revoke(ctx, "DG143", ""), apperrors.CodeProtectedAccount))
	assert.True(t, apperrors.HasCode(svc.Delete(ctx, "DG143"), apperrors.CodeProtectedAccount))
}

func TestDeleteMissingLeavesStore(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t, repository.NewMemoryStore())
	_, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)

	err = svc.Delete(ctx, "bob")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, "alice"))
	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, []events.EventType{events.EventAccountRegistered, events.EventAccountDeleted}, rec.types())
}

// flakyStore injects failures around a real store.
type flakyStore struct {
	repository.AccountStore
	readErr   error
	writeErr  error
	conflicts int

	mu     sync.Mutex
	writes int
}

func (f *flakyStore) ReadAll(ctx context.Context) (repository.Snapshot, error) {
	if f.readErr != nil {
		return repository.Snapshot{}, f.readErr
	}
	return f.AccountStore.ReadAll(ctx)
}

func (f *flakyStore) WriteAll(ctx context.Context, accounts []domain.Account, version string) (string, error) {
	f.mu.Lock()
	f.writes++
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return "", repository.ErrVersionConflict
	}
	f.mu.Unlock()
	if f.writeErr != nil {
		return "", f.writeErr
	}
	return f.AccountStore.WriteAll(ctx, accounts, version)
}

func TestMutationRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{AccountStore: repository.NewMemoryStore(), conflicts: 2}
	svc, _ := newTestService(t, store)

	_, err := svc.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, 3, store.writes)

	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestMutationGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{AccountStore: repository.NewMemoryStore(), conflicts: 10}
	svc, rec := newTestService(t, store)

	_, err := svc.Register(ctx, "alice", "pw")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreConflict))
	assert.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Equal(t, 3, store.writes)
	assert.Empty(t, rec.types(), "no event for a failed mutation")
}

func TestStoreFailuresSurface(t *testing.T) {
	ctx := context.Background()

	svc, _ := newTestService(t, &flakyStore{AccountStore: repository.NewMemoryStore(), readErr: errors.New("timeout")})
	_, err := svc.List(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))
	_, err = svc.Authenticate(ctx, "a", "b")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))

	svc, _ = newTestService(t, &flakyStore{AccountStore: repository.NewMemoryStore(), writeErr: errors.New("disk full")})
	_, err = svc.Register(ctx, "alice", "pw")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStoreUnavailable))
}

func TestDegradingStoreHidesFailures(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{AccountStore: repository.NewMemoryStore(), readErr: errors.New("timeout")}
	svc, _ := newTestService(t, repository.NewDegradingStore(inner, zap.NewNop()))

	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	_, err = svc.Authenticate(ctx, "alice", "pw")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))
}

func TestDegradedReadNeverReplacesDocument(t *testing.T) {
	ctx := context.Background()
	inner := &flakyStore{
		AccountStore: repository.NewMemoryStore(
			domain.Account{Username: "DG143", Password: "root", IsAdmin: true, Status: domain.AccountStatusApproved},
			domain.Account{Username: "bob", Password: "pw", Status: domain.AccountStatusPending},
		),
		readErr: errors.New("timeout"),
	}
	svc, _ := newTestService(t, repository.NewDegradingStore(inner, zap.NewNop()))

	_, err := svc.Register(ctx, "eve", "pw")
	require.NoError(t, err)
	assert.Zero(t, inner.writes)

	inner.readErr = nil
	accounts, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "DG143", accounts[0].Username)
	assert.Equal(t, "bob", accounts[1].Username)
}

func TestConcurrentRegistrationsAllLand(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, repository.NewMemoryStore())

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(ctx, fmt.Sprintf("user-%d", i), "pw")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.Total)
	assert.Equal(t, 25, stats.Pending)
}

func TestBcryptPasswords(t *testing.T) {
	ctx := context.Background()
	policy, err := auth.NewPasswordPolicy(config.PasswordModeBcrypt, bcrypt.MinCost)
	require.NoError(t, err)
	store := repository.NewMemoryStore()
	svc := NewAccountService(testConfig(), AccountDependencies{Store: store, Passwords: policy})

	account, err := svc.Create(ctx, domain.NewAccount{Username: "alice", Password: "pw", Status: domain.AccountStatusApproved})
	require.NoError(t, err)
	assert.NotEqual(t, "pw", account.Password)

	_, err = svc.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "alice", account.Password)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))

	_, err = svc.Register(ctx, "bob", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed), "emptiness is checked before hashing")
}
