package middleware

import (
	deliverycontext "stockdash/internal/delivery/context"
	domainerrors "stockdash/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware guards routes by the kind of the request's session. It must run
// after SessionMiddleware.Load.
type AuthMiddleware struct{}

// NewAuthMiddleware is the constructor for AuthMiddleware.
func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{}
}

// RequireUser admits only sessions logged in as a regular account.
func (m *AuthMiddleware) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session := deliverycontext.GetSession(c)
		if session.IsAuthenticated() {
			return next(c)
		}
		if session.IsAdmin() {
			return domainerrors.ErrForbidden
		}

		return domainerrors.ErrUnauthenticated
	}
}

// RequireAdmin admits only administrator sessions.
func (m *AuthMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session := deliverycontext.GetSession(c)
		if session.IsAdmin() {
			return next(c)
		}
		if session.IsAuthenticated() {
			return domainerrors.ErrForbidden
		}

		return domainerrors.ErrUnauthenticated
	}
}
