// Package memory is a process-local credential store for development and tests.
// It honours the same contract as the relational store, uniqueness included.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"stockdash/internal/domain/entity"
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/domain/repository"
	"stockdash/internal/errors"
)

// AccountStore keeps accounts keyed by username.
type AccountStore struct {
	// writeMu serialises mutations with transactions.
	writeMu sync.Mutex

	mu       sync.RWMutex
	accounts map[string]*entity.Account
	nextID   uint64
	now      func() time.Time
}

// NewAccountStore creates an empty store.
func NewAccountStore() *AccountStore {
	return newAccountStore(func() time.Time { return time.Now().UTC() })
}

func newAccountStore(now func() time.Time) *AccountStore {
	return &AccountStore{
		accounts: make(map[string]*entity.Account),
		nextID:   1,
		now:      now,
	}
}

// NewAccountRepository exposes s as a repository.AccountRepository.
func NewAccountRepository(s *AccountStore) repository.AccountRepository {
	return &accountRepository{store: s}
}

type accountRepository struct {
	store *AccountStore
	// inTx marks a repository handed out by a transaction; it already owns writeMu.
	inTx bool
}

func (r *accountRepository) lockWrites() func() {
	if r.inTx {
		return func() {}
	}
	r.store.writeMu.Lock()

	return r.store.writeMu.Unlock
}

func (r *accountRepository) Create(_ context.Context, account *entity.Account) error {
	if account.Username == "" || account.Email == "" || account.PasswordHash == "" {
		return domainerrors.ErrValidationFailed.WrapMessage("missing required account information")
	}

	defer r.lockWrites()()
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return domainerrors.ErrDuplicateUsername.WrapMessage("username already exists")
	}
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return domainerrors.ErrDuplicateEmail.WrapMessage("email already exists")
		}
	}

	now := s.now()
	stored := cloneAccount(account)
	stored.ID = s.nextID
	stored.DateOfBirth = entity.NormalizeDate(account.DateOfBirth)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.accounts[stored.Username] = stored
	s.nextID++

	account.ID = stored.ID
	account.CreatedAt = now
	account.UpdatedAt = now

	return nil
}

func (r *accountRepository) FindByUsername(_ context.Context, username string) (*entity.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}

	return cloneAccount(account), nil
}

func (r *accountRepository) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	found := r.filter(func(a *entity.Account) bool { return a.Email == email })
	if len(found) == 0 {
		return nil, repository.ErrAccountNotFound
	}

	return found[0], nil
}

func (r *accountRepository) FindByDateOfBirth(_ context.Context, dob time.Time) ([]*entity.Account, error) {
	day := entity.NormalizeDate(dob)

	return r.filter(func(a *entity.Account) bool { return a.DateOfBirth.Equal(day) }), nil
}

func (r *accountRepository) FindByName(_ context.Context, firstName, lastName string) ([]*entity.Account, error) {
	return r.filter(func(a *entity.Account) bool {
		return a.FirstName == firstName && a.LastName == lastName
	}), nil
}

func (r *accountRepository) ListAll(_ context.Context) ([]*entity.Account, error) {
	return r.filter(func(*entity.Account) bool { return true }), nil
}

func (r *accountRepository) UpdatePassword(_ context.Context, username, passwordHash string) error {
	return r.mutate(func(a *entity.Account) bool { return a.Username == username }, func(a *entity.Account) {
		a.PasswordHash = passwordHash
	})
}

func (r *accountRepository) UpdateProfile(_ context.Context, username, firstName, lastName string, dob time.Time) error {
	return r.mutate(func(a *entity.Account) bool { return a.Username == username }, func(a *entity.Account) {
		a.FirstName = firstName
		a.LastName = lastName
		a.DateOfBirth = entity.NormalizeDate(dob)
	})
}

func (r *accountRepository) SetResetToken(_ context.Context, email, tokenHash string, expiry time.Time) error {
	return r.mutate(func(a *entity.Account) bool { return a.Email == email }, func(a *entity.Account) {
		hash := tokenHash
		exp := expiry.UTC()
		a.ResetTokenHash = &hash
		a.ResetTokenExpiry = &exp
	})
}

func (r *accountRepository) FindByValidResetToken(_ context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	found := r.filter(func(a *entity.Account) bool {
		return a.ResetTokenHash != nil && *a.ResetTokenHash == tokenHash && a.HasPendingReset(now)
	})
	if len(found) == 0 {
		return nil, repository.ErrAccountNotFound
	}

	return found[0], nil
}

func (r *accountRepository) ConsumeResetToken(_ context.Context, username, tokenHash string, now time.Time) error {
	return r.mutate(func(a *entity.Account) bool {
		return a.Username == username && a.ResetTokenHash != nil && *a.ResetTokenHash == tokenHash && a.HasPendingReset(now)
	}, func(a *entity.Account) {
		a.ResetTokenHash = nil
		a.ResetTokenExpiry = nil
	})
}

func (r *accountRepository) ClearResetToken(_ context.Context, username string) error {
	err := r.mutate(func(a *entity.Account) bool { return a.Username == username }, func(a *entity.Account) {
		a.ResetTokenHash = nil
		a.ResetTokenExpiry = nil
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil
	}

	return err
}

// filter returns copies of the matching accounts in creation order.
func (r *accountRepository) filter(match func(*entity.Account) bool) []*entity.Account {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make([]*entity.Account, 0)
	for _, account := range s.accounts {
		if match(account) {
			found = append(found, cloneAccount(account))
		}
	}
	slices.SortFunc(found, func(a, b *entity.Account) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return found
}

func (r *accountRepository) mutate(match func(*entity.Account) bool, apply func(*entity.Account)) error {
	defer r.lockWrites()()
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if match(account) {
			apply(account)
			account.UpdatedAt = s.now()

			return nil
		}
	}

	return repository.ErrAccountNotFound
}

func cloneAccount(a *entity.Account) *entity.Account {
	c := *a
	if a.ResetTokenHash != nil {
		hash := *a.ResetTokenHash
		c.ResetTokenHash = &hash
	}
	if a.ResetTokenExpiry != nil {
		exp := *a.ResetTokenExpiry
		c.ResetTokenExpiry = &exp
	}

	return &c
}
