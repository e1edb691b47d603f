package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"stockdash/internal/domain/entity"
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/domain/repository"
	"stockdash/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(username, email string) *entity.Account {
	return &entity.Account{
		Username:     username,
		Email:        email,
		FirstName:    "Alice",
		LastName:     "Smith",
		DateOfBirth:  time.Date(1990, time.May, 1, 0, 0, 0, 0, time.UTC),
		PasswordHash: "hash",
	}
}

func TestAccountRepository_CreateUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewAccountStore())

	first := newAccount("alice", "a@x.com")
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, uint64(1), first.ID)

	assert.ErrorIs(t, repo.Create(ctx, newAccount("alice", "b@x.com")), domainerrors.ErrDuplicateUsername)
	assert.ErrorIs(t, repo.Create(ctx, newAccount("bob", "a@x.com")), domainerrors.ErrDuplicateEmail)
	assert.ErrorIs(t, repo.Create(ctx, newAccount("", "c@x.com")), domainerrors.ErrValidationFailed)

	// Usernames are case-sensitive.
	require.NoError(t, repo.Create(ctx, newAccount("Alice", "c@x.com")))

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
	assert.Equal(t, "Alice", all[1].Username)
}

func TestAccountRepository_ConcurrentCreateSameUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewAccountStore())

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account := newAccount("alice", string(rune('a'+i))+"@x.com")
			if err := repo.Create(ctx, account); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestAccountRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewAccountStore())
	require.NoError(t, repo.Create(ctx, newAccount("alice", "a@x.com")))

	got, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	got.PasswordHash = "tampered"

	again, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", again.PasswordHash)
}

func TestAccountRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewAccountStore())
	require.NoError(t, repo.Create(ctx, newAccount("alice", "a@x.com")))
	bob := newAccount("bob", "b@x.com")
	bob.FirstName = "Bob"
	require.NoError(t, repo.Create(ctx, bob))

	born, err := repo.FindByDateOfBirth(ctx, time.Date(1990, time.May, 1, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, born, 2)

	named, err := repo.FindByName(ctx, "Bob", "Smith")
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "bob", named[0].Username)

	named, err = repo.FindByName(ctx, "Bob", "Jones")
	require.NoError(t, err)
	assert.NotNil(t, named)
	assert.Empty(t, named)

	_, err = repo.FindByEmail(ctx, "zed@x.com")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAccountRepository_ResetToken(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewAccountStore())
	require.NoError(t, repo.Create(ctx, newAccount("alice", "a@x.com")))

	issued := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetResetToken(ctx, "a@x.com", "h1", issued.Add(time.Hour)))
	assert.ErrorIs(t, repo.SetResetToken(ctx, "zed@x.com", "h1", issued), repository.ErrAccountNotFound)

	got, err := repo.FindByValidResetToken(ctx, "h1", issued.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = repo.FindByValidResetToken(ctx, "h1", issued.Add(61*time.Minute))
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)

	require.NoError(t, repo.ClearResetToken(ctx, "alice"))
	require.NoError(t, repo.ClearResetToken(ctx, "ghost"))
	_, err = repo.FindByValidResetToken(ctx, "h1", issued)
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)
}

func TestAccountRepository_ConsumeResetTokenOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(NewAccountStore())
	require.NoError(t, repo.Create(ctx, newAccount("alice", "a@x.com")))

	issued := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SetResetToken(ctx, "a@x.com", "h1", issued.Add(time.Hour)))

	assert.ErrorIs(t, repo.ConsumeResetToken(ctx, "alice", "h2", issued), repository.ErrAccountNotFound)
	assert.ErrorIs(t, repo.ConsumeResetToken(ctx, "alice", "h1", issued.Add(61*time.Minute)), repository.ErrAccountNotFound)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if repo.ConsumeResetToken(ctx, "alice", "h1", issued) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
}

func TestTransactionManager(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore()
	repo := NewAccountRepository(store)
	txManager := NewTransactionManager(store)
	require.NoError(t, repo.Create(ctx, newAccount("alice", "a@x.com")))

	boom := errors.New("boom")
	err := txManager.Execute(ctx, func(f repository.RepositoryFactory) error {
		require.NoError(t, f.AccountRepo().UpdatePassword(ctx, "alice", "staged"))

		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PasswordHash)

	err = txManager.Execute(ctx, func(f repository.RepositoryFactory) error {
		if err := f.AccountRepo().UpdatePassword(ctx, "alice", "committed"); err != nil {
			return err
		}

		return f.AccountRepo().ClearResetToken(ctx, "alice")
	})
	require.NoError(t, err)

	got, err = repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "committed", got.PasswordHash)
}
