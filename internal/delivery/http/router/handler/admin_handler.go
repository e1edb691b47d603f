package handler

import (
	"net/http"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/delivery/http/response"
	"stockdash/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AdminHandler serves administrator views.
type AdminHandler struct {
	uc usecase.AccountUsecase
}

func NewAdminHandler(uc usecase.AccountUsecase) *AdminHandler {
	return &AdminHandler{uc: uc}
}

// ListAccounts returns every registered account without credentials.
func (h *AdminHandler) ListAccounts(c echo.Context) error {
	accounts, err := h.uc.ListAccounts(c.Request().Context(), deliverycontext.GetSession(c))
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, accounts, "")
}
