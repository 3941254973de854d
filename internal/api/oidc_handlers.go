package api

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"gatehouse-backend/internal/database"
	"gatehouse-backend/internal/models"
	"gatehouse-backend/internal/session"
)

// Pending OAuth2 state values, pruned as new logins start.
var (
	oidcStatesMu sync.Mutex
	oidcStates   = make(map[string]time.Time)
)

const oidcStateTTL = 10 * time.Minute

func storeOIDCState(state string) {
	oidcStatesMu.Lock()
	defer oidcStatesMu.Unlock()

	now := time.Now()
	for s, created := range oidcStates {
		if now.Sub(created) > oidcStateTTL {
			delete(oidcStates, s)
		}
	}
	oidcStates[state] = now
}

func consumeOIDCState(state string) bool {
	oidcStatesMu.Lock()
	defer oidcStatesMu.Unlock()

	created, exists := oidcStates[state]
	if !exists {
		return false
	}
	delete(oidcStates, state)

	return time.Since(created) <= oidcStateTTL
}

// oidcLoginHandler handles GET /api/auth/oidc/login
func oidcLoginHandler(c echo.Context) error {
	state, err := session.GenerateID()
	if err != nil {
		c.Logger().Error("state generation error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "federated login unavailable",
		})
	}

	storeOIDCState(state)

	return c.Redirect(http.StatusFound, oidcClient.AuthCodeURL(state))
}

// oidcCallbackHandler handles GET /api/auth/oidc/callback. A verified
// identity maps onto a local user, created on first login with no
// password hash, and gets an ordinary session.
func oidcCallbackHandler(c echo.Context) error {
	state := c.QueryParam("state")
	code := c.QueryParam("code")
	if state == "" || code == "" || !consumeOIDCState(state) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid authorization response",
		})
	}

	ctx := c.Request().Context()

	identity, err := oidcClient.Authenticate(ctx, code)
	if err != nil {
		c.Logger().Error("federated login error: ", err)
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "federated login failed",
		})
	}

	user, err := userRepo.GetByUsername(ctx, identity.Username)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			c.Logger().Error("federated user lookup error: ", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "authentication failed",
			})
		}

		user = &models.User{
			Username: identity.Username,
			Email:    identity.Email,
			AuthType: models.AuthTypeOIDC,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			c.Logger().Error("federated user creation error: ", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "authentication failed",
			})
		}
	}

	result, err := authService.IssueFor(ctx, user, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		c.Logger().Error("federated session error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "authentication failed",
		})
	}

	setSessionCookie(c, result.Token, result.ExpiresAt)

	return c.JSON(http.StatusOK, map[string]any{
		"user":       result.User,
		"expires_at": result.ExpiresAt,
		"csrf_token": csrf.GenerateToken(result.Token),
	})
}
