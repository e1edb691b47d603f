// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"stockdash/config"
	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/entity"
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/domain/repository"
	"stockdash/internal/domain/service"
	"stockdash/internal/infra/validation"
	"stockdash/internal/usecase"
	"stockdash/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	registrationSubject = "Registration Successful"
	resetSubject        = "Password Reset Request"

	// decoyPassword is hashed once at start so a login for an unknown identity pays the
	// same hash compare as a known one.
	decoyPassword = "stockdash-decoy-password"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	accounts  repository.AccountRepository
	txManager repository.TransactionManager
	hasher    service.PasswordHasher
	tokens    service.ResetTokenService
	notifier  service.Notifier
	validate  *validator.Validate

	admin              adminIdentity
	decoyHash          string
	resetTokenTTL      time.Duration
	resetLink          *url.URL
	directResetEnabled bool

	now    func() time.Time
	logger *slog.Logger
}

// adminIdentity is the configured administrator. An empty hash disables admin login.
type adminIdentity struct {
	username     string
	email        string
	passwordHash string
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	Accounts  repository.AccountRepository
	TxManager repository.TransactionManager
	Hasher    service.PasswordHasher
	Tokens    service.ResetTokenService
	Notifier  service.Notifier
	Config    *config.Config
	Logger    *slog.Logger

	Clock func() time.Time `optional:"true"`
}

// NewAccountService is the constructor for accountService. A plaintext admin password
// from the config is hashed here, once.
func NewAccountService(params AccountServiceParams) (usecase.AccountUsecase, error) {
	cfg := params.Config
	if cfg == nil || cfg.Auth == nil {
		return nil, errors.New("auth configuration is required")
	}

	resetLink, err := url.Parse(cfg.Auth.ResetLinkBaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid auth.resetLinkBaseURL")
	}

	admin, err := newAdminIdentity(cfg.Admin, params.Hasher)
	if err != nil {
		return nil, err
	}

	decoyHash, err := params.Hasher.Hash(decoyPassword)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash decoy password")
	}

	now := params.Clock
	if now == nil {
		now = time.Now
	}

	return &accountService{
		accounts:           params.Accounts,
		txManager:          params.TxManager,
		hasher:             params.Hasher,
		tokens:             params.Tokens,
		notifier:           params.Notifier,
		validate:           validation.New(),
		admin:              admin,
		decoyHash:          decoyHash,
		resetTokenTTL:      cfg.Auth.ResetTokenTTL,
		resetLink:          resetLink,
		directResetEnabled: cfg.Auth.DirectResetEnabled,
		now:                now,
		logger:             params.Logger,
	}, nil
}

func newAdminIdentity(cfg *config.AdminConfig, hasher service.PasswordHasher) (adminIdentity, error) {
	if cfg == nil || (cfg.Username == "" && cfg.Email == "") {
		return adminIdentity{}, nil
	}

	admin := adminIdentity{username: cfg.Username, email: cfg.Email, passwordHash: cfg.PasswordHash}
	if admin.passwordHash == "" && cfg.Password != "" {
		hash, err := hasher.Hash(cfg.Password)
		if err != nil {
			return adminIdentity{}, errors.Wrap(err, "failed to hash admin password")
		}
		admin.passwordHash = hash
	}

	return admin, nil
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Signup validates the form, checks username then email availability, stores the
// account and sends the confirmation email. A failed email does not undo the account.
func (srv *accountService) Signup(ctx context.Context, input *usecase.SignupInput) (*usecase.SignupOutput, error) {
	if err := srv.validateInput(input); err != nil {
		return nil, err
	}
	dob, err := entity.ParseDate(input.DateOfBirth)
	if err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("dateOfBirth: datetime")
	}

	srv.log(ctx).Info("Starting signup", slog.String("username", input.Username))

	_, err = srv.accounts.FindByUsername(ctx, input.Username)
	switch {
	case err == nil:
		return nil, domainerrors.ErrDuplicateUsername.WrapMessage("username already exists")
	case !errors.Is(err, repository.ErrAccountNotFound):
		return nil, storeError(err, "failed to check username")
	}

	_, err = srv.accounts.FindByEmail(ctx, input.Email)
	switch {
	case err == nil:
		return nil, domainerrors.ErrDuplicateEmail.WrapMessage("email already exists")
	case !errors.Is(err, repository.ErrAccountNotFound):
		return nil, storeError(err, "failed to check email")
	}

	hash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, domainerrors.ErrPasswordHashFailed.Wrap(err, "failed to hash password")
	}

	account := &entity.Account{
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		DateOfBirth:  dob,
		PasswordHash: hash,
	}
	if err := srv.accounts.Create(ctx, account); err != nil {
		return nil, storeError(err, "failed to create account")
	}

	srv.log(ctx).Info("Account created", slog.String("username", account.Username))

	body := "Dear " + account.Username + ",\n\nYour registration was successful."

	return &usecase.SignupOutput{
		Account:  account.Summary(),
		Notified: srv.notify(ctx, account.Email, registrationSubject, body),
	}, nil
}

// Login authenticates a user or the administrator and updates session on success only.
func (srv *accountService) Login(ctx context.Context, session *entity.Session, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	if err := srv.validateInput(input); err != nil {
		return nil, err
	}

	if srv.isAdminIdentity(input.Identity) && srv.hasher.Check(input.Password, srv.admin.passwordHash) {
		return srv.grantAdmin(ctx, session), nil
	}

	account, err := srv.findByIdentity(ctx, input.Identity, input.Kind)
	if err != nil {
		if errors.Is(err, domainerrors.ErrAccountNotFound) {
			srv.hasher.Check(input.Password, srv.decoyHash)
		}
		srv.log(ctx).Warn("Login failed", slog.String("reason", "lookup"), slog.Any("error", err))

		return nil, err
	}

	if !srv.hasher.Check(input.Password, account.PasswordHash) {
		srv.log(ctx).Warn("Login failed", slog.String("reason", "password"), slog.String("username", account.Username))

		return nil, domainerrors.ErrInvalidCredentials
	}

	if srv.hasher.NeedsRehash(account.PasswordHash) {
		srv.upgradeHash(ctx, account.Username, input.Password)
	}

	session.GrantUser(account.Username)
	srv.log(ctx).Info("User logged in", slog.String("username", account.Username))

	return &usecase.LoginOutput{Kind: session.Kind, Username: account.Username}, nil
}

// LoginAdmin accepts only the administrator identity.
func (srv *accountService) LoginAdmin(ctx context.Context, session *entity.Session, input *usecase.LoginInput) (*usecase.LoginOutput, error) {
	if err := srv.validateInput(input); err != nil {
		return nil, err
	}

	if !srv.isAdminIdentity(input.Identity) || !srv.hasher.Check(input.Password, srv.admin.passwordHash) {
		srv.log(ctx).Warn("Admin login failed")

		return nil, domainerrors.ErrInvalidCredentials
	}

	return srv.grantAdmin(ctx, session), nil
}

func (srv *accountService) grantAdmin(ctx context.Context, session *entity.Session) *usecase.LoginOutput {
	name := srv.admin.username
	if name == "" {
		name = srv.admin.email
	}
	session.GrantAdmin(name)
	srv.log(ctx).Info("Administrator logged in")

	return &usecase.LoginOutput{Kind: session.Kind, Username: name}
}

func (srv *accountService) isAdminIdentity(identity string) bool {
	if srv.admin.passwordHash == "" {
		return false
	}

	return constantTimeEqual(identity, srv.admin.username) || constantTimeEqual(identity, srv.admin.email)
}

func constantTimeEqual(given, configured string) bool {
	return configured != "" && subtle.ConstantTimeCompare([]byte(given), []byte(configured)) == 1
}

func (srv *accountService) findByIdentity(ctx context.Context, identity string, kind usecase.IdentityKind) (*entity.Account, error) {
	if kind == usecase.IdentityAuto {
		kind = usecase.IdentityUsername
		if strings.Contains(identity, "@") {
			kind = usecase.IdentityEmail
		}
	}

	var (
		account *entity.Account
		err     error
	)
	if kind == usecase.IdentityEmail {
		account, err = srv.accounts.FindByEmail(ctx, identity)
	} else {
		account, err = srv.accounts.FindByUsername(ctx, identity)
	}
	if err != nil {
		return nil, storeError(err, "failed to find account")
	}

	return account, nil
}

// upgradeHash replaces a legacy or weaker hash after a successful login. Failure only logs.
func (srv *accountService) upgradeHash(ctx context.Context, username, password string) {
	hash, err := srv.hasher.Hash(password)
	if err == nil {
		err = srv.accounts.UpdatePassword(ctx, username, hash)
	}
	if err != nil {
		srv.log(ctx).Warn("Failed to upgrade password hash", slog.String("username", username), slog.Any("error", err))

		return
	}

	srv.log(ctx).Info("Password hash upgraded", slog.String("username", username))
}

// ForgotPassword issues a reset token for email and mails the reset link.
func (srv *accountService) ForgotPassword(ctx context.Context, email string) (*usecase.ForgotPasswordOutput, error) {
	if err := srv.validate.Var(email, "required,email"); err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("email: " + validation.Details(err))
	}

	account, err := srv.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, storeError(err, "failed to find account by email")
	}

	token, err := srv.tokens.Generate()
	if err != nil {
		return nil, domainerrors.ErrInternalError.Wrap(err, "failed to generate reset token")
	}

	expiry := srv.now().UTC().Add(srv.resetTokenTTL)
	if err := srv.accounts.SetResetToken(ctx, email, token.Hash, expiry); err != nil {
		return nil, storeError(err, "failed to store reset token")
	}

	srv.log(ctx).Info("Password reset requested",
		slog.String("username", account.Username),
		slog.Time("expires_at", expiry),
	)

	body := "Dear " + account.Username + ",\n\n" +
		"We received a request to reset your password. The link below is valid for " +
		util.FormatDuration(srv.resetTokenTTL) + ":\n\n" +
		srv.buildResetLink(token.Token) + "\n\n" +
		"If you did not request a password reset, you can ignore this email."

	return &usecase.ForgotPasswordOutput{
		Notified: srv.notify(ctx, account.Email, resetSubject, body),
	}, nil
}

func (srv *accountService) buildResetLink(token string) string {
	link := *srv.resetLink
	query := link.Query()
	query.Set("token", token)
	link.RawQuery = query.Encode()

	return link.String()
}

// ValidateResetToken checks a token from a reset link without consuming it.
func (srv *accountService) ValidateResetToken(ctx context.Context, token string) error {
	if token == "" {
		return domainerrors.ErrInvalidOrExpiredToken
	}

	_, err := srv.accounts.FindByValidResetToken(ctx, srv.tokens.Hash(token), srv.now().UTC())
	if errors.Is(err, repository.ErrAccountNotFound) {
		return domainerrors.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return storeError(err, "failed to validate reset token")
	}

	return nil
}

// ResetPasswordWithToken sets a new password and consumes the token in one transaction.
func (srv *accountService) ResetPasswordWithToken(ctx context.Context, input *usecase.ResetPasswordInput) error {
	if err := srv.validateInput(input); err != nil {
		return err
	}

	// Unknown or expired tokens are turned away before paying for a hash. The
	// transaction below consumes the token atomically.
	if err := srv.ValidateResetToken(ctx, input.Token); err != nil {
		return err
	}

	hash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return domainerrors.ErrPasswordHashFailed.Wrap(err, "failed to hash password")
	}

	tokenHash := srv.tokens.Hash(input.Token)
	now := srv.now().UTC()

	var username string
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.AccountRepo()

		account, err := accountRepo.FindByValidResetToken(ctx, tokenHash, now)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return domainerrors.ErrInvalidOrExpiredToken
		}
		if err != nil {
			return err
		}
		username = account.Username

		err = accountRepo.ConsumeResetToken(ctx, account.Username, tokenHash, now)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return domainerrors.ErrInvalidOrExpiredToken
		}
		if err != nil {
			return err
		}

		return accountRepo.UpdatePassword(ctx, account.Username, hash)
	})
	if err != nil {
		return storeError(err, "failed to reset password")
	}

	srv.log(ctx).Info("Password reset with token", slog.String("username", username))

	return nil
}

// ResetPasswordDirect resets a password when email and date of birth match. A wrong
// date and an unknown email get the same answer.
func (srv *accountService) ResetPasswordDirect(ctx context.Context, input *usecase.DirectResetInput) error {
	if !srv.directResetEnabled {
		return domainerrors.ErrForbidden.WrapMessage("direct password reset is disabled")
	}
	if err := srv.validateInput(input); err != nil {
		return err
	}
	dob, err := entity.ParseDate(input.DateOfBirth)
	if err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("dateOfBirth: datetime")
	}

	account, err := srv.accounts.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return storeError(err, "failed to find account by email")
	}
	if !account.DateOfBirth.Equal(dob) {
		srv.log(ctx).Warn("Direct reset challenge failed", slog.String("username", account.Username))

		return domainerrors.ErrInvalidCredentials
	}

	hash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return domainerrors.ErrPasswordHashFailed.Wrap(err, "failed to hash password")
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.AccountRepo()
		if err := accountRepo.UpdatePassword(ctx, account.Username, hash); err != nil {
			return err
		}

		return accountRepo.ClearResetToken(ctx, account.Username)
	})
	if err != nil {
		return storeError(err, "failed to reset password")
	}

	srv.log(ctx).Info("Password reset by challenge", slog.String("username", account.Username))

	return nil
}

// ForgotUsername lists the accounts whose first and last name both match.
func (srv *accountService) ForgotUsername(ctx context.Context, firstName, lastName string) ([]entity.AccountContact, error) {
	if firstName == "" || lastName == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("firstName and lastName are required")
	}

	accounts, err := srv.accounts.FindByName(ctx, firstName, lastName)
	if err != nil {
		return nil, storeError(err, "failed to find accounts by name")
	}

	contacts := make([]entity.AccountContact, 0, len(accounts))
	for _, account := range accounts {
		contacts = append(contacts, entity.AccountContact{Username: account.Username, Email: account.Email})
	}

	return contacts, nil
}

// ForgotUsernameByDateOfBirth lists the usernames registered with dob.
func (srv *accountService) ForgotUsernameByDateOfBirth(ctx context.Context, dob string) ([]string, error) {
	day, err := entity.ParseDate(dob)
	if err != nil {
		return nil, domainerrors.ErrValidationFailed.WithDetails("dateOfBirth: datetime")
	}

	accounts, err := srv.accounts.FindByDateOfBirth(ctx, day)
	if err != nil {
		return nil, storeError(err, "failed to find accounts by date of birth")
	}

	usernames := make([]string, 0, len(accounts))
	for _, account := range accounts {
		usernames = append(usernames, account.Username)
	}

	return usernames, nil
}

func (srv *accountService) GetProfile(ctx context.Context, username string) (*entity.AccountSummary, error) {
	account, err := srv.accounts.FindByUsername(ctx, username)
	if err != nil {
		return nil, storeError(err, "failed to load profile")
	}

	return account.Summary(), nil
}

func (srv *accountService) UpdateProfile(ctx context.Context, input *usecase.UpdateProfileInput) error {
	if err := srv.validateInput(input); err != nil {
		return err
	}
	dob, err := entity.ParseDate(input.DateOfBirth)
	if err != nil {
		return domainerrors.ErrValidationFailed.WithDetails("dateOfBirth: datetime")
	}

	if err := srv.accounts.UpdateProfile(ctx, input.Username, input.FirstName, input.LastName, dob); err != nil {
		return storeError(err, "failed to update profile")
	}

	srv.log(ctx).Info("Profile updated", slog.String("username", input.Username))

	return nil
}

// ChangePassword requires the current password and a confirmed new one.
func (srv *accountService) ChangePassword(ctx context.Context, input *usecase.ChangePasswordInput) error {
	if err := srv.validateInput(input); err != nil {
		return err
	}

	account, err := srv.accounts.FindByUsername(ctx, input.Username)
	if err != nil {
		return storeError(err, "failed to find account")
	}
	if !srv.hasher.Check(input.CurrentPassword, account.PasswordHash) {
		return domainerrors.ErrInvalidCredentials
	}

	hash, err := srv.hasher.Hash(input.NewPassword)
	if err != nil {
		return domainerrors.ErrPasswordHashFailed.Wrap(err, "failed to hash password")
	}
	if err := srv.accounts.UpdatePassword(ctx, account.Username, hash); err != nil {
		return storeError(err, "failed to update password")
	}

	srv.log(ctx).Info("Password changed", slog.String("username", account.Username))

	return nil
}

// ListAccounts returns every account summary. Admin sessions only.
func (srv *accountService) ListAccounts(ctx context.Context, session *entity.Session) ([]*entity.AccountSummary, error) {
	if !session.IsAdmin() {
		return nil, domainerrors.ErrForbidden
	}

	accounts, err := srv.accounts.ListAll(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list accounts")
	}

	summaries := make([]*entity.AccountSummary, 0, len(accounts))
	for _, account := range accounts {
		summaries = append(summaries, account.Summary())
	}

	return summaries, nil
}

func (srv *accountService) validateInput(input any) error {
	if err := srv.validate.Struct(input); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails(validation.Details(err))
	}

	return nil
}

// notify sends one email and reports whether it was accepted.
func (srv *accountService) notify(ctx context.Context, to, subject, body string) bool {
	if err := srv.notifier.Send(ctx, to, subject, body); err != nil {
		err = domainerrors.ErrDeliveryFailed.Wrap(err, "failed to send "+subject)
		srv.log(ctx).Warn("Email delivery failed",
			slog.String("to", util.MaskEmail(to)),
			slog.String("subject", subject),
			slog.Any("error", err),
		)

		return false
	}

	return true
}

// storeError maps a credential store error to the domain taxonomy: absent accounts
// become ErrAccountNotFound, coded errors pass through and anything else is
// ErrStoreUnavailable.
func storeError(err error, message string) error {
	if errors.Is(err, repository.ErrAccountNotFound) {
		return domainerrors.ErrAccountNotFound.WrapMessage(message)
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return errors.Wrap(err, message)
	}

	return domainerrors.ErrStoreUnavailable.Wrap(err, message)
}
