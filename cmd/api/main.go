package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lecternhq/lectern/internal/auth"
	"github.com/lecternhq/lectern/internal/background"
	"github.com/lecternhq/lectern/internal/config"
	"github.com/lecternhq/lectern/internal/database"
	"github.com/lecternhq/lectern/internal/handlers"
	"github.com/lecternhq/lectern/internal/mailer"
	middlewareCustom "github.com/lecternhq/lectern/internal/middleware"
	"github.com/lecternhq/lectern/internal/models"
	"github.com/lecternhq/lectern/internal/repositories"
	"github.com/lecternhq/lectern/internal/routes"
	"github.com/lecternhq/lectern/internal/services"
	pkgauth "github.com/lecternhq/lectern/pkg/auth"
	pkghttp "github.com/lecternhq/lectern/pkg/http"
	pkglogger "github.com/lecternhq/lectern/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	tokenRepo := repositories.NewAuthTokenRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Token lifecycle service and retention sweeper
	tokenService := services.NewTokenService(tokenRepo, logger, auditLogger)
	sweeper := background.NewSweeper(tokenService, background.SweeperConfig{
		Interval:      cfg.Auth.SweepInterval,
		UsedRetention: cfg.Auth.UsedTokenRetention,
	}, logger)

	// Access token manager (self-contained JWTs, never persisted)
	tokenManager := auth.NewAccessTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	// Timing delay for login
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	// Mailer
	var mail services.Mailer
	if cfg.Email.Provider == "ses" {
		sesMailer, err := mailer.NewSESMailer(cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.BaseURL, logger)
		if err != nil {
			logger.Error("failed to initialize mailer", slog.Any("error", err))
			os.Exit(1)
		}
		mail = sesMailer
	} else {
		mail = mailer.NewLogMailer(logger)
	}

	// Initialize services
	lockout := services.LockoutPolicy{
		Threshold: cfg.Auth.LockoutThreshold,
		Duration:  cfg.Auth.LockoutDuration,
	}
	authService := services.NewAuthService(userRepo, db, tokenService, tokenManager, cfg.Auth.RefreshTokenExpiry, lockout, timingDelay, mail, logger, auditLogger)
	accountService := services.NewAccountService(userRepo, tokenService, logger, auditLogger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	tokenHandler := handlers.NewAPITokenHandler(tokenService)
	adminHandler := handlers.NewAdminHandler(accountService)

	// Bootstrap first admin user if configured
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(bootCtx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	bootCancel()

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig(cfg.Server.Env)
	if len(cfg.Server.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, tokenHandler, adminHandler, tokenManager, userRepo, middlewareCustom.DefaultAuthRateLimit())

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start token sweeper
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	go sweeper.Start(sweepCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	// Check if admin already exists
	_, err := userRepo.GetByEmail(ctx, adminEmail)
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	// Hash password
	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	// Create admin user
	admin := &models.User{
		Email:              adminEmail,
		PasswordHash:       hashedPassword,
		FirstName:          "Platform",
		LastName:           "Admin",
		Role:               models.RoleAdmin,
		Status:             models.StatusActive,
		EmailVerified:      true,
		MustChangePassword: true,
	}

	_, err = userRepo.Create(ctx, admin)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}
