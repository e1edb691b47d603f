package memory

import (
	"context"

	"stockdash/internal/domain/entity"
	"stockdash/internal/domain/repository"
)

type transactionManager struct {
	store *AccountStore
}

type repositoryFactory struct {
	repo *accountRepository
}

func (f *repositoryFactory) AccountRepo() repository.AccountRepository {
	return f.repo
}

// NewTransactionManager runs transactions against a staged copy of s and swaps it in
// on success. Transactions and plain writes are serialised.
func NewTransactionManager(s *AccountStore) repository.TransactionManager {
	return &transactionManager{store: s}
}

func (tm *transactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := tm.store
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	staged := tm.snapshot()
	if err := fn(&repositoryFactory{repo: &accountRepository{store: staged, inTx: true}}); err != nil {
		return err
	}

	s.mu.Lock()
	s.accounts = staged.accounts
	s.nextID = staged.nextID
	s.mu.Unlock()

	return nil
}

func (tm *transactionManager) snapshot() *AccountStore {
	s := tm.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	staged := newAccountStore(s.now)
	staged.nextID = s.nextID
	staged.accounts = make(map[string]*entity.Account, len(s.accounts))
	for username, account := range s.accounts {
		staged.accounts[username] = cloneAccount(account)
	}

	return staged
}
