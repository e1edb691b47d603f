// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"stockdash/internal/domain/entity"
)

// IdentityKind says how LoginInput.Identity is interpreted.
type IdentityKind string

const (
	IdentityAuto     IdentityKind = ""
	IdentityUsername IdentityKind = "username"
	IdentityEmail    IdentityKind = "email"
)

// --- Input DTOs ---

// SignupInput defines the data required to create an account.
type SignupInput struct {
	Username        string `json:"username" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email,max=255"`
	FirstName       string `json:"firstName" validate:"required,max=255"`
	LastName        string `json:"lastName" validate:"required,max=255"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginInput carries a username or email and a password.
type LoginInput struct {
	Identity string       `json:"identity" validate:"required"`
	Password string       `json:"password" validate:"required"`
	Kind     IdentityKind `json:"kind" validate:"omitempty,oneof=username email"`
}

// ResetPasswordInput completes a token based password reset.
type ResetPasswordInput struct {
	Token           string `json:"token" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// DirectResetInput resets a password by answering the email + date of birth challenge.
type DirectResetInput struct {
	Email           string `json:"email" validate:"required,email"`
	DateOfBirth     string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// UpdateProfileInput overwrites the editable profile fields of Username.
type UpdateProfileInput struct {
	Username    string `json:"-" validate:"required"`
	FirstName   string `json:"firstName" validate:"required,max=255"`
	LastName    string `json:"lastName" validate:"required,max=255"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
}

// ChangePasswordInput changes the password of a logged-in user.
type ChangePasswordInput struct {
	Username        string `json:"-" validate:"required"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// --- Output DTOs ---

// SignupOutput returns the created account. Notified is false when the
// confirmation email could not be delivered.
type SignupOutput struct {
	Account  *entity.AccountSummary
	Notified bool
}

// LoginOutput reports the session state reached by a successful login.
type LoginOutput struct {
	Kind     entity.SessionKind
	Username string
}

// ForgotPasswordOutput reports whether the reset link was handed to the notifier.
type ForgotPasswordOutput struct {
	Notified bool
}

// AccountUsecase defines the account lifecycle operations.
type AccountUsecase interface {
	Signup(ctx context.Context, input *SignupInput) (*SignupOutput, error)
	Login(ctx context.Context, session *entity.Session, input *LoginInput) (*LoginOutput, error)
	LoginAdmin(ctx context.Context, session *entity.Session, input *LoginInput) (*LoginOutput, error)
	ForgotPassword(ctx context.Context, email string) (*ForgotPasswordOutput, error)
	ValidateResetToken(ctx context.Context, token string) error
	ResetPasswordWithToken(ctx context.Context, input *ResetPasswordInput) error
	ResetPasswordDirect(ctx context.Context, input *DirectResetInput) error
	ForgotUsername(ctx context.Context, firstName, lastName string) ([]entity.AccountContact, error)
	ForgotUsernameByDateOfBirth(ctx context.Context, dob string) ([]string, error)
	GetProfile(ctx context.Context, username string) (*entity.AccountSummary, error)
	UpdateProfile(ctx context.Context, input *UpdateProfileInput) error
	ChangePassword(ctx context.Context, input *ChangePasswordInput) error
	ListAccounts(ctx context.Context, session *entity.Session) ([]*entity.AccountSummary, error)
}
