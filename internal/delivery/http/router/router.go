// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"stockdash/internal/delivery/http/middleware"
	"stockdash/internal/delivery/http/router/handler"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler        *handler.AuthHandler
	AccountHandler     *handler.AccountHandler
	AdminHandler       *handler.AdminHandler
	AuthMiddleware     *middleware.AuthMiddleware
	SessionMiddleware  *middleware.SessionMiddleware
	SecurityMiddleware *middleware.SecurityMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler        *handler.AuthHandler
	accountHandler     *handler.AccountHandler
	adminHandler       *handler.AdminHandler
	authMiddleware     *middleware.AuthMiddleware
	sessionMiddleware  *middleware.SessionMiddleware
	securityMiddleware *middleware.SecurityMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:        params.AuthHandler,
		accountHandler:     params.AccountHandler,
		adminHandler:       params.AdminHandler,
		authMiddleware:     params.AuthMiddleware,
		sessionMiddleware:  params.SessionMiddleware,
		securityMiddleware: params.SecurityMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Auth routes, open to anonymous sessions. Everything that checks a
	// credential or reveals an account shares one per-IP limit.
	throttle := r.securityMiddleware.Throttle()
	authGroup := e.Group("/auth", r.sessionMiddleware.Load)
	{
		authGroup.POST("/signup", r.authHandler.Signup, throttle)
		authGroup.POST("/login", r.authHandler.Login, throttle)
		authGroup.POST("/admin/login", r.authHandler.LoginAdmin, throttle)
		authGroup.POST("/logout", r.authHandler.Logout)
		authGroup.GET("/session", r.authHandler.Session)

		authGroup.POST("/password/forgot", r.authHandler.ForgotPassword, throttle)
		authGroup.GET("/password/reset", r.authHandler.ValidateResetToken, throttle)
		authGroup.POST("/password/reset", r.authHandler.ResetPassword, throttle)
		authGroup.POST("/password/reset/direct", r.authHandler.ResetPasswordDirect, throttle)

		authGroup.POST("/username/forgot", r.authHandler.ForgotUsername, throttle)
		authGroup.POST("/username/forgot/dob", r.authHandler.ForgotUsernameByDateOfBirth, throttle)
	}

	// Account routes that require a user session
	accountGroup := e.Group("/account", r.sessionMiddleware.Load, r.authMiddleware.RequireUser)
	{
		accountGroup.GET("/profile", r.accountHandler.GetProfile)
		accountGroup.PUT("/profile", r.accountHandler.UpdateProfile)
		accountGroup.PUT("/password", r.accountHandler.ChangePassword)
	}

	// Admin routes that require an administrator session
	adminGroup := e.Group("/admin", r.sessionMiddleware.Load, r.authMiddleware.RequireAdmin)
	{
		adminGroup.GET("/accounts", r.adminHandler.ListAccounts)
	}
}
