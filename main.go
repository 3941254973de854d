package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"gatehouse-backend/internal/api"
	"gatehouse-backend/internal/auth"
	"gatehouse-backend/internal/config"
	"gatehouse-backend/internal/database"
	"gatehouse-backend/internal/federation"
	"gatehouse-backend/internal/logger"
	"gatehouse-backend/internal/models"
	"gatehouse-backend/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing database", "path", cfg.Database.Path)
	db, err := database.Open(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()

	store, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		log.Fatal("failed to initialize session store", "error", err)
	}
	log.Info("session store ready", "backend", cfg.Session.Backend)

	userRepo := database.NewUserRepo(db)
	if err := createDefaultAdminIfNeeded(ctx, userRepo, cfg.Auth.BcryptCost, log); err != nil {
		log.Warn("failed to create default admin", "error", err)
	}

	authSvc := auth.NewService(userRepo, store, cfg.Session.TTL, log)

	sweeper := auth.NewSweeper(store, cfg.Session.SweepInterval, cfg.Session.SweepInitialWait, log)
	go sweeper.Run(ctx)

	rateLimiter := auth.NewRateLimiter(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow, cfg.Auth.LoginBlockTime)
	defer rateLimiter.Stop()

	csrf := auth.NewCSRFProtection(cfg.Session.TTL)
	defer csrf.Stop()

	var oidcClient *federation.Client
	if cfg.OIDC.Enabled() {
		oidcClient, err = federation.New(ctx, federation.Config{
			IssuerURL:    cfg.OIDC.IssuerURL,
			ClientID:     cfg.OIDC.ClientID,
			ClientSecret: cfg.OIDC.ClientSecret,
			RedirectURL:  cfg.OIDC.RedirectURL,
		})
		if err != nil {
			log.Fatal("failed to initialize OIDC client", "error", err)
		}
		log.Info("federated login enabled", "issuer", cfg.OIDC.IssuerURL)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-CSRF-Token"},
		AllowCredentials: true,
	}))

	api.RegisterRoutes(e.Group("/api"), api.Deps{
		Auth:         authSvc,
		Users:        userRepo,
		RateLimiter:  rateLimiter,
		CSRF:         csrf,
		OIDC:         oidcClient,
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		HashCost:     cfg.Auth.BcryptCost,
	})

	go func() {
		log.Info("starting gatehouse backend", "addr", cfg.Addr)
		if err := e.Start(cfg.Addr); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// newSessionStore builds the session store selected by configuration.
func newSessionStore(ctx context.Context, cfg *config.Config, db *database.DB) (session.Store, error) {
	switch cfg.Session.Backend {
	case "sqlite":
		return session.NewSQLiteStore(db), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return session.NewRedisStore(client), nil
	case "memory":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

// createDefaultAdminIfNeeded creates a default admin user if no users exist
func createDefaultAdminIfNeeded(ctx context.Context, userRepo *database.UserRepo, hashCost int, log *logger.Logger) error {
	count, err := userRepo.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	log.Warn("creating default admin user (admin/admin) - CHANGE THIS PASSWORD!")

	passwordHash, err := auth.HashPassword("admin", hashCost)
	if err != nil {
		return err
	}

	return userRepo.Create(ctx, &models.User{
		Username:     "admin",
		PasswordHash: passwordHash,
		AuthType:     models.AuthTypeLocal,
	})
}
