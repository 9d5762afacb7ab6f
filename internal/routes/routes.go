package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/handlers"
	"github.com/lecternhq/lectern/internal/middleware"
	"github.com/lecternhq/lectern/internal/models"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenHandler *handlers.APITokenHandler,
	adminHandler *handlers.AdminHandler,
	tokenManager *auth.AccessTokenManager,
	userRepo auth.UserRepository,
	rateLimitConfig middleware.RateLimitConfig,
) {

	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/signup", authHandler.Signup)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/refresh", authHandler.Refresh)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/logout", authHandler.Logout)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/verify-email", authHandler.VerifyEmail)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/verify-email/resend", authHandler.ResendVerification)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/password-reset", authHandler.RequestPasswordReset)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokenManager))

		r.Post("/auth/logout-all", authHandler.LogoutAll)
		r.Post("/auth/password", authHandler.ChangePassword)
		r.Post("/auth/mfa/challenge", authHandler.MFAChallenge)
		r.Post("/auth/mfa/verify", authHandler.MFAVerify)

		r.Post("/tokens", tokenHandler.Create)
		r.Get("/tokens", tokenHandler.List)
		r.Delete("/tokens/{id}", tokenHandler.Revoke)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(userRepo, models.RoleAdmin))
			r.Get("/admin/users", adminHandler.ListUsers)
			r.Get("/admin/users/{id}/lockout", adminHandler.GetLockoutState)
			r.Post("/admin/users/{id}/unlock", adminHandler.UnlockUser)
			r.Post("/admin/users/{id}/suspend", adminHandler.SuspendUser)
			r.Post("/admin/users/{id}/reinstate", adminHandler.ReinstateUser)
		})
	})
}
