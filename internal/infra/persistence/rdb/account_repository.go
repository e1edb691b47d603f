package rdb

import (
	"context"
	"time"

	"stockdash/internal/domain/entity"
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/domain/repository"
	"stockdash/internal/infra/persistence/model"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// accountRepository implements repository.AccountRepository with GORM.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns the gorm credential store bound to db, which may be a transaction.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	accountM := fromAccountDomain(account)

	if err := repo.db.WithContext(ctx).Create(accountM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repo.duplicateError(ctx, err, account.Username)
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required account information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create account")
	}

	account.ID = accountM.ID
	account.CreatedAt = accountM.CreatedAt.UTC()
	account.UpdatedAt = accountM.UpdatedAt.UTC()

	return nil
}

// duplicateError tells a username collision from an email collision. When the driver
// error does not name the constraint, the username is looked up again.
func (repo *accountRepository) duplicateError(ctx context.Context, err error, username string) error {
	switch duplicateColumn(err) {
	case columnUsername:
		return domainerrors.ErrDuplicateUsername.WrapMessage("username already exists")
	case columnEmail:
		return domainerrors.ErrDuplicateEmail.WrapMessage("email already exists")
	}

	_, findErr := repo.FindByUsername(ctx, username)
	switch {
	case findErr == nil:
		return domainerrors.ErrDuplicateUsername.WrapMessage("username already exists")
	case errors.Is(findErr, repository.ErrAccountNotFound):
		return domainerrors.ErrDuplicateEmail.WrapMessage("email already exists")
	default:
		return findErr
	}
}

func (repo *accountRepository) FindByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return repo.findOne(ctx, "find account by username", "username = ?", username)
}

func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return repo.findOne(ctx, "find account by email", "email = ?", email)
}

func (repo *accountRepository) FindByDateOfBirth(ctx context.Context, dob time.Time) ([]*entity.Account, error) {
	return repo.findMany(ctx, "find accounts by date of birth", "dob = ?", entity.NormalizeDate(dob))
}

func (repo *accountRepository) FindByName(ctx context.Context, firstName, lastName string) ([]*entity.Account, error) {
	return repo.findMany(ctx, "find accounts by name", "first_name = ? AND last_name = ?", firstName, lastName)
}

func (repo *accountRepository) ListAll(ctx context.Context) ([]*entity.Account, error) {
	return repo.findMany(ctx, "list accounts", "")
}

func (repo *accountRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return repo.update(ctx, "update password", map[string]any{
		"password_hash": passwordHash,
	}, "username = ?", username)
}

func (repo *accountRepository) UpdateProfile(ctx context.Context, username, firstName, lastName string, dob time.Time) error {
	return repo.update(ctx, "update profile", map[string]any{
		"first_name": firstName,
		"last_name":  lastName,
		"dob":        entity.NormalizeDate(dob),
	}, "username = ?", username)
}

func (repo *accountRepository) SetResetToken(ctx context.Context, email, tokenHash string, expiry time.Time) error {
	return repo.update(ctx, "set reset token", map[string]any{
		"reset_token":        tokenHash,
		"reset_token_expiry": storedTime(expiry),
	}, "email = ?", email)
}

func (repo *accountRepository) FindByValidResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error) {
	return repo.findOne(ctx, "find account by reset token",
		"reset_token = ? AND reset_token_expiry > ?", tokenHash, storedTime(now))
}

// ConsumeResetToken is a conditional UPDATE. A concurrent transaction holding the same
// token waits on the row lock, then re-checks the WHERE clause and matches nothing.
func (repo *accountRepository) ConsumeResetToken(ctx context.Context, username, tokenHash string, now time.Time) error {
	return repo.update(ctx, "consume reset token", clearedResetToken(),
		"username = ? AND reset_token = ? AND reset_token_expiry > ?", username, tokenHash, storedTime(now))
}

// ClearResetToken succeeds whether or not a token was pending.
func (repo *accountRepository) ClearResetToken(ctx context.Context, username string) error {
	err := repo.update(ctx, "clear reset token", clearedResetToken(), "username = ?", username)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil
	}

	return err
}

func (repo *accountRepository) findOne(ctx context.Context, op, query string, args ...any) (*entity.Account, error) {
	var accountM model.AccountModel

	err := repo.db.WithContext(ctx).Where(query, args...).Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to "+op)
	}

	return toAccountDomain(&accountM), nil
}

func (repo *accountRepository) findMany(ctx context.Context, op, query string, args ...any) ([]*entity.Account, error) {
	var accountMs []*model.AccountModel

	tx := repo.db.WithContext(ctx)
	if query != "" {
		tx = tx.Where(query, args...)
	}

	err := tx.Order("id").Find(&accountMs).Error
	if err != nil {
		return nil, domainerrors.NewDatabaseExecuteError(err, "failed to "+op)
	}

	accounts := make([]*entity.Account, 0, len(accountMs))
	for _, accountM := range accountMs {
		accounts = append(accounts, toAccountDomain(accountM))
	}

	return accounts, nil
}

func clearedResetToken() map[string]any {
	return map[string]any{
		"reset_token":        nil,
		"reset_token_expiry": nil,
	}
}

// update applies values to the row matched by query. No matching row is ErrAccountNotFound.
func (repo *accountRepository) update(ctx context.Context, op string, values map[string]any, query string, args ...any) error {
	result := repo.db.WithContext(ctx).Model(&model.AccountModel{}).Where(query, args...).Updates(values)
	if result.Error != nil {
		if isNotNullConstraintViolation(result.Error) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required account information")
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to "+op)
	}

	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// storedTime is the precision every backend keeps: UTC, microseconds.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func fromAccountDomain(account *entity.Account) *model.AccountModel {
	accountM := &model.AccountModel{
		ID:           account.ID,
		Username:     account.Username,
		FirstName:    account.FirstName,
		LastName:     account.LastName,
		Email:        account.Email,
		DateOfBirth:  entity.NormalizeDate(account.DateOfBirth),
		PasswordHash: account.PasswordHash,
		ResetToken:   account.ResetTokenHash,
	}
	if account.ResetTokenExpiry != nil {
		expiry := storedTime(*account.ResetTokenExpiry)
		accountM.ResetTokenExpiry = &expiry
	}

	return accountM
}

func toAccountDomain(accountM *model.AccountModel) *entity.Account {
	account := &entity.Account{
		ID:             accountM.ID,
		Username:       accountM.Username,
		Email:          accountM.Email,
		FirstName:      accountM.FirstName,
		LastName:       accountM.LastName,
		DateOfBirth:    entity.NormalizeDate(accountM.DateOfBirth),
		PasswordHash:   accountM.PasswordHash,
		ResetTokenHash: accountM.ResetToken,
		CreatedAt:      accountM.CreatedAt.UTC(),
		UpdatedAt:      accountM.UpdatedAt.UTC(),
	}
	if accountM.ResetTokenExpiry != nil {
		expiry := accountM.ResetTokenExpiry.UTC()
		account.ResetTokenExpiry = &expiry
	}

	return account
}
