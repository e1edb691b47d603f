package repository

import "context"

// TransactionManager runs account writes that must land together, such as a
// password update and the reset token clear, in one local store transaction.
type TransactionManager interface {
	// Execute commits when fn returns nil and rolls back otherwise. Repositories
	// obtained from the factory are bound to the transaction.
	Execute(ctx context.Context, fn func(txRepoFactory RepositoryFactory) error) error
}

// RepositoryFactory provides repository instances that are bound to a specific transaction.
type RepositoryFactory interface {
	AccountRepo() AccountRepository
}
