package handler

import (
	"net/http"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/delivery/http/response"
	"stockdash/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AccountHandler serves the logged-in user's own account.
type AccountHandler struct {
	uc usecase.AccountUsecase
}

// NewAccountHandler is the constructor for AccountHandler.
func NewAccountHandler(uc usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{uc: uc}
}

// GetProfile returns the profile of the session's account.
func (h *AccountHandler) GetProfile(c echo.Context) error {
	session := deliverycontext.GetSession(c)

	profile, err := h.uc.GetProfile(c.Request().Context(), session.Username)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, profile, "")
}

// UpdateProfile overwrites names and date of birth.
func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	input := &usecase.UpdateProfileInput{}
	if err := c.Bind(input); err != nil {
		return bindError()
	}
	input.Username = deliverycontext.GetSession(c).Username
	if err := c.Validate(input); err != nil {
		return err
	}

	if err := h.uc.UpdateProfile(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Profile updated")
}

// ChangePassword changes the password after checking the current one.
func (h *AccountHandler) ChangePassword(c echo.Context) error {
	input := &usecase.ChangePasswordInput{}
	if err := c.Bind(input); err != nil {
		return bindError()
	}
	input.Username = deliverycontext.GetSession(c).Username
	if err := c.Validate(input); err != nil {
		return err
	}

	if err := h.uc.ChangePassword(c.Request().Context(), input); err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, nil, "Password changed")
}
