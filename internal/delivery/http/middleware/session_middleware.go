package middleware

import (
	"net/http"
	"time"

	"stockdash/config"
	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/domain/entity"
	"stockdash/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// SessionMiddleware loads the cookie session before the handler and persists
// it after handlers change it.
type SessionMiddleware struct {
	sessions usecase.SessionUsecase
	cookie   string
	secure   bool
}

// NewSessionMiddleware creates the session middleware.
func NewSessionMiddleware(sessions usecase.SessionUsecase, cfg *config.Config) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: sessions,
		cookie:   cfg.Session.CookieName,
		secure:   cfg.Session.CookieSecure,
	}
}

// Load attaches the request's session (anonymous when absent or expired) to echo.Context.
func (m *SessionMiddleware) Load(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		var id string
		if cookie, err := c.Cookie(m.cookie); err == nil {
			id = cookie.Value
		}

		session, err := m.sessions.Load(c.Request().Context(), id)
		if err != nil {
			return errors.WithStack(err)
		}
		deliverycontext.SetSession(c, session)

		return next(c)
	}
}

// Commit saves a changed session and sends its cookie. Handlers call it before
// writing the response body.
func (m *SessionMiddleware) Commit(c echo.Context, session *entity.Session) error {
	if !session.Dirty() {
		return nil
	}

	if err := m.sessions.Save(c.Request().Context(), session); err != nil {
		return errors.WithStack(err)
	}
	c.SetCookie(m.newCookie(session.ID, session.ExpiresAt))

	return nil
}

// End destroys the session and expires its cookie.
func (m *SessionMiddleware) End(c echo.Context, session *entity.Session) error {
	if err := m.sessions.Destroy(c.Request().Context(), session); err != nil {
		return errors.WithStack(err)
	}

	cookie := m.newCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	c.SetCookie(cookie)

	return nil
}

func (m *SessionMiddleware) newCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
