// Package persistence selects the credential store backend.
package persistence

import (
	"stockdash/internal/domain/constants"
	"stockdash/internal/domain/repository"
	"stockdash/internal/infra/persistence/memory"
	"stockdash/internal/infra/persistence/rdb"

	"go.uber.org/fx"
)

// Store is the credential store as provided to the fx graph.
type Store struct {
	fx.Out

	Accounts  repository.AccountRepository
	TxManager repository.TransactionManager
}

// NewStore opens the backend named by database.driver.
func NewStore(params rdb.Params) (Store, error) {
	if params.Config.Database.Driver == constants.DatabaseDriverMemory {
		accounts := memory.NewAccountStore()
		params.Logger.Warn("Using the in-memory credential store; accounts are lost on restart")

		return Store{
			Accounts:  memory.NewAccountRepository(accounts),
			TxManager: memory.NewTransactionManager(accounts),
		}, nil
	}

	db, err := rdb.New(params)
	if err != nil {
		return Store{}, err
	}

	return Store{
		Accounts:  rdb.NewAccountRepository(db),
		TxManager: rdb.NewTransactionManager(db),
	}, nil
}
