package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	deliverycontext "stockdash/internal/delivery/context"
	"stockdash/internal/delivery/http/response"
	domainerrors "stockdash/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// ErrorMiddleware error handling middleware
type ErrorMiddleware struct {
	logger *slog.Logger
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger: logger,
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler. Clients only ever
// see the coded message; causes are logged.
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, m.logger)

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		details := appErr.Details()
		if appErr.HTTPCode() >= http.StatusInternalServerError {
			logger.Error("Request failed",
				slog.String("code", appErr.ErrorCode()),
				slog.String("error", err.Error()),
				slog.String("path", c.Request().URL.Path),
			)
			details = ""
		}
		m.write(c, appErr.HTTPCode(), appErr.ErrorCode(), appErr.Message(), details)

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok && httpErr.Code < http.StatusInternalServerError {
			message = msg
		} else if httpErr.Code >= http.StatusInternalServerError {
			logger.Error("HTTP error", slog.String("error", fmt.Sprint(httpErr.Message)))
		}
		m.write(c, httpErr.Code, "HTTP_ERROR", message, "")

		return
	}

	logger.Error("Unhandled error",
		slog.String("error", err.Error()),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)

	internal := domainerrors.ErrInternalError
	m.write(c, internal.HTTPCode(), internal.ErrorCode(), internal.Message(), "")
}

func (m *ErrorMiddleware) write(c echo.Context, status int, code, message, details string) {
	if c.Request().Method == http.MethodHead {
		if err := c.NoContent(status); err != nil {
			m.logger.Error("Failed to write error response", slog.Any("error", err))
		}

		return
	}

	if err := response.Error(c, status, code, message, details); err != nil {
		m.logger.Error("Failed to write error response", slog.Any("error", err))
	}
}
