package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ContextKeyPrincipal is the echo context key for the resolved Principal.
const ContextKeyPrincipal = "principal"

// RequireAuth middleware rejects anonymous requests with 401. A store
// failure is a 500; the client never learns why resolution failed.
func RequireAuth(authSvc *Service, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c, cookieName)

			principal, err := authSvc.Resolve(c.Request().Context(), token)
			if err != nil {
				c.Logger().Error("session resolution error: ", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{
					"error": "authentication unavailable",
				})
			}
			if principal == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authentication required",
				})
			}

			c.Set(ContextKeyPrincipal, principal)

			return next(c)
		}
	}
}

// OptionalAuth middleware resolves the session if one is present but
// lets anonymous requests through.
func OptionalAuth(authSvc *Service, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c, cookieName)
			if token != "" {
				principal, err := authSvc.Resolve(c.Request().Context(), token)
				if err == nil && principal != nil {
					c.Set(ContextKeyPrincipal, principal)
				}
			}
			return next(c)
		}
	}
}

// TokenFromRequest extracts the session token from the request.
func TokenFromRequest(c echo.Context, cookieName string) string {
	// Try Authorization header first (Bearer token)
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	// Try cookie
	cookie, err := c.Cookie(cookieName)
	if err == nil && cookie.Value != "" {
		return cookie.Value
	}

	return ""
}

// PrincipalFromContext retrieves the resolved principal, or nil for an
// anonymous request.
func PrincipalFromContext(c echo.Context) *Principal {
	principal, ok := c.Get(ContextKeyPrincipal).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
