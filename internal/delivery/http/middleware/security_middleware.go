package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stockdash/config"
	"stockdash/internal/delivery/http/response"
	"stockdash/internal/domain/constants"
	domainerrors "stockdash/internal/domain/errors"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
	"github.com/unrolled/secure"
)

// SecurityMiddleware sets browser security headers and throttles the credential endpoints.
type SecurityMiddleware struct {
	headers  *secure.Secure
	requests int
	window   time.Duration
	logger   *slog.Logger
}

// NewSecurityMiddleware creates the security middleware from the http config.
func NewSecurityMiddleware(cfg *config.Config, logger *slog.Logger) *SecurityMiddleware {
	headers := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		IsDevelopment:         cfg.Env.Env == constants.EnvDevelop,
	})

	return &SecurityMiddleware{
		headers:  headers,
		requests: cfg.HTTP.RateLimit.Requests,
		window:   cfg.HTTP.RateLimit.Window,
		logger:   logger,
	}
}

// Headers writes the security headers on every response.
func (m *SecurityMiddleware) Headers(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := m.headers.Process(c.Response(), c.Request()); err != nil {
			m.logger.Warn("Secure headers blocked request", slog.Any("error", err))

			return domainerrors.ErrForbidden
		}

		return next(c)
	}
}

// Throttle limits requests per client IP. It is a no-op when the limit is disabled.
func (m *SecurityMiddleware) Throttle() echo.MiddlewareFunc {
	if m.requests <= 0 || m.window <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	limiter := httprate.Limit(m.requests, m.window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(m.tooManyRequests),
	)

	return echo.WrapMiddleware(limiter)
}

func (m *SecurityMiddleware) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	m.logger.Warn("Rate limit exceeded", slog.String("path", r.URL.Path))

	limited := domainerrors.ErrTooManyRequests
	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.Header().Set(echo.HeaderCacheControl, "no-store")
	w.WriteHeader(limited.HTTPCode())
	if err := json.NewEncoder(w).Encode(response.Response{
		Success: false,
		Code:    limited.HTTPCode(),
		Message: limited.Message(),
		Error:   &response.ErrorInfo{Code: limited.ErrorCode()},
	}); err != nil {
		m.logger.Error("Failed to write rate limit response", slog.Any("error", err))
	}
}
