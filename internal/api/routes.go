package api

import (
	"github.com/labstack/echo/v4"

	"gatehouse-backend/internal/auth"
	"gatehouse-backend/internal/database"
	"gatehouse-backend/internal/federation"
)

// Deps carries the wired services the handlers need.
type Deps struct {
	Auth        *auth.Service
	Users       *database.UserRepo
	RateLimiter *auth.RateLimiter
	CSRF        *auth.CSRFProtection
	OIDC        *federation.Client // nil when federation is disabled

	CookieName   string
	CookieSecure bool
	HashCost     int
}

var (
	authService  *auth.Service
	userRepo     *database.UserRepo
	rateLimiter  *auth.RateLimiter
	csrf         *auth.CSRFProtection
	oidcClient   *federation.Client
	cookieName   string
	cookieSecure bool
	hashCost     int
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(g *echo.Group, deps Deps) {
	authService = deps.Auth
	userRepo = deps.Users
	rateLimiter = deps.RateLimiter
	csrf = deps.CSRF
	oidcClient = deps.OIDC
	cookieName = deps.CookieName
	cookieSecure = deps.CookieSecure
	hashCost = deps.HashCost

	// Health check (public)
	g.GET("/health", healthCheck)

	// Auth routes (public - no auth required for login)
	authGroup := g.Group("/auth")
	authGroup.POST("/login", loginHandler, deps.RateLimiter.Middleware())
	authGroup.POST("/otp", verifyOTPHandler)
	authGroup.POST("/logout", logoutHandler)
	authGroup.GET("/me", getCurrentUser, auth.RequireAuth(deps.Auth, cookieName))

	if oidcClient != nil {
		authGroup.GET("/oidc/login", oidcLoginHandler)
		authGroup.GET("/oidc/callback", oidcCallbackHandler)
	}

	// Signup is public; duplicate usernames conflict
	g.POST("/users", createUserHandler)

	// Protected user routes
	users := g.Group("/users")
	users.Use(auth.RequireAuth(deps.Auth, cookieName))
	users.Use(deps.CSRF.Middleware(cookieName))
	users.GET("/:id", getUserHandler)
	users.DELETE("/:id", deleteUserHandler)
}
