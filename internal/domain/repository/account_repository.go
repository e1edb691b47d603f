// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"stockdash/internal/domain/entity"
)

// ErrAccountNotFound is returned when a lookup or targeted update matches no account.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository is the credential store. Implementations must enforce unique
// username and email at the storage level and report violations as
// domainerrors.ErrDuplicateUsername / domainerrors.ErrDuplicateEmail.
type AccountRepository interface {
	// Create persists a new account and fills in ID and timestamps.
	Create(ctx context.Context, account *entity.Account) error

	// FindByUsername retrieves a single account by exact username.
	FindByUsername(ctx context.Context, username string) (*entity.Account, error)

	// FindByEmail retrieves a single account by exact email.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// FindByDateOfBirth returns every account born on dob. Zero matches is an empty slice.
	FindByDateOfBirth(ctx context.Context, dob time.Time) ([]*entity.Account, error)

	// FindByName returns every account whose first and last name both match.
	FindByName(ctx context.Context, firstName, lastName string) ([]*entity.Account, error)

	// ListAll returns every account ordered by creation.
	ListAll(ctx context.Context) ([]*entity.Account, error)

	// UpdatePassword replaces the password hash of the account identified by username.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// UpdateProfile overwrites first name, last name and date of birth.
	UpdateProfile(ctx context.Context, username, firstName, lastName string, dob time.Time) error

	// SetResetToken stores the hash of a reset token and its expiry on the account with email.
	SetResetToken(ctx context.Context, email, tokenHash string, expiry time.Time) error

	// FindByValidResetToken returns the account holding tokenHash whose expiry is after now.
	FindByValidResetToken(ctx context.Context, tokenHash string, now time.Time) (*entity.Account, error)

	// ConsumeResetToken clears the token of username only if it still holds tokenHash
	// unexpired at now. A token already consumed or replaced is ErrAccountNotFound, so
	// two concurrent resets with one token cannot both succeed.
	ConsumeResetToken(ctx context.Context, username, tokenHash string, now time.Time) error

	// ClearResetToken removes any pending reset token from the account.
	ClearResetToken(ctx context.Context, username string) error
}
