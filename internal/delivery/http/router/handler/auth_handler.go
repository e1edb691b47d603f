// Package handler contains the HTTP handlers for the application.
package handler

import (
	"log/slog"
	"net/http"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/delivery/http/middleware"
	"stockdash/internal/delivery/http/response"
	domainerrors "stockdash/internal/domain/errors"
	"stockdash/internal/usecase"
	"stockdash/internal/util"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const forgotPasswordMessage = "If the email is registered, a password reset link has been sent"

// ForgotPasswordRequest is the body of POST /auth/password/forgot.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotUsernameRequest is the body of POST /auth/username/forgot.
type ForgotUsernameRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// ForgotUsernameByDOBRequest is the body of POST /auth/username/forgot/dob.
type ForgotUsernameByDOBRequest struct {
	DateOfBirth string `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
}

// SessionView is the public shape of a session.
type SessionView struct {
	Kind     string `json:"kind"`
	Username string `json:"username,omitempty"`
}

// AuthHandler serves signup, login and the credential recovery flows.
type AuthHandler struct {
	uc       usecase.AccountUsecase
	sessions *middleware.SessionMiddleware
	logger   *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler, injected by Fx.
func NewAuthHandler(uc usecase.AccountUsecase, sessions *middleware.SessionMiddleware, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		uc:       uc,
		sessions: sessions,
		logger:   logger,
	}
}

// Signup handles the registration request.
func (h *AuthHandler) Signup(c echo.Context) error {
	input := new(usecase.SignupInput)
	if err := bindAndValidate(c, input); err != nil {
		return err
	}

	output, err := h.uc.Signup(c.Request().Context(), input)
	if err != nil {
		return errors.WithStack(err)
	}

	message := "Registration successful"
	if !output.Notified {
		message = "Registration successful, but the confirmation email could not be sent"
	}

	return response.Success(c, http.StatusCreated, map[string]any{
		"account":  output.Account,
		"notified": output.Notified,
	}, message)
}

// Login handles user (or administrator) login by username or email.
func (h *AuthHandler) Login(c echo.Context) error {
	input := new(usecase.LoginInput)
	if err := bindAndValidate(c, input); err != nil {
		return err
	}

	session := deliverycontext.GetSession(c)
	output, err := h.uc.Login(c.Request().Context(), session, input)
	if errors.Is(err, domainerrors.ErrAccountNotFound) {
		return domainerrors.ErrInvalidCredentials
	}
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.sessions.Commit(c, session); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, SessionView{Kind: output.Kind.String(), Username: output.Username}, "Login successful")
}

// LoginAdmin handles the administrator login form.
func (h *AuthHandler) LoginAdmin(c echo.Context) error {
	input := new(usecase.LoginInput)
	if err := bindAndValidate(c, input); err != nil {
		return err
	}

	session := deliverycontext.GetSession(c)
	output, err := h.uc.LoginAdmin(c.Request().Context(), session, input)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.sessions.Commit(c, session); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, SessionView{Kind: output.Kind.String(), Username: output.Username}, "Login successful")
}

// Logout destroys the session.
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.sessions.End(c, deliverycontext.GetSession(c)); err != nil {
		return err
	}

	return response.Success(c, http.StatusOK, nil, "Logged out")
}

// Session reports who the current session belongs to.
func (h *AuthHandler) Session(c echo.Context) error {
	session := deliverycontext.GetSession(c)

	return response.Success(c, http.StatusOK, SessionView{Kind: session.Kind.String(), Username: session.Username}, "")
}

// ForgotPassword answers the same way whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	req := new(ForgotPasswordRequest)
	if err := bindAndValidate(c, req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	_, err := h.uc.ForgotPassword(ctx, req.Email)
	switch {
	case errors.Is(err, domainerrors.ErrAccountNotFound):
		deliverycontext.GetLoggerOrDefault(ctx, h.logger).Info("Password reset requested for unknown email",
			slog.String("email", util.MaskEmail(req.Email)),
		)
	case err != nil:
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusAccepted, nil, forgotPasswordMessage)
}

// ValidateResetToken is the landing endpoint of the emailed reset link. Exactly
// one token parameter is accepted.
func (h *AuthHandler) ValidateResetToken(c echo.Context) error {
	tokens := c.QueryParams()["token"]
	if len(tokens) != 1 {
		return domainerrors.ErrInvalidOrExpiredToken
	}

	if err := h.uc.ValidateResetToken(c.Request().Context(), tokens[0]); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "The reset link is valid")
}

// ResetPassword completes a token based reset.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	input := new(usecase.ResetPasswordInput)
	if err := bindAndValidate(c, input); err != nil {
		return err
	}

	if err := h.uc.ResetPasswordWithToken(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Password has been reset")
}

// ResetPasswordDirect resets a password from the email and date of birth challenge.
func (h *AuthHandler) ResetPasswordDirect(c echo.Context) error {
	input := new(usecase.DirectResetInput)
	if err := bindAndValidate(c, input); err != nil {
		return err
	}

	if err := h.uc.ResetPasswordDirect(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Password has been reset")
}

// ForgotUsername lists username and email of the accounts matching both names.
func (h *AuthHandler) ForgotUsername(c echo.Context) error {
	req := new(ForgotUsernameRequest)
	if err := bindAndValidate(c, req); err != nil {
		return err
	}

	contacts, err := h.uc.ForgotUsername(c.Request().Context(), req.FirstName, req.LastName)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, contacts, "")
}

// ForgotUsernameByDateOfBirth lists the usernames registered with a date of birth.
func (h *AuthHandler) ForgotUsernameByDateOfBirth(c echo.Context) error {
	req := new(ForgotUsernameByDOBRequest)
	if err := bindAndValidate(c, req); err != nil {
		return err
	}

	usernames, err := h.uc.ForgotUsernameByDateOfBirth(c.Request().Context(), req.DateOfBirth)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, usernames, "")
}

// bindAndValidate decodes the request body into dst and runs the echo validator.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return bindError()
	}

	return c.Validate(dst)
}

func bindError() error {
	return domainerrors.ErrValidationFailed.WithDetails("malformed request body")
}
