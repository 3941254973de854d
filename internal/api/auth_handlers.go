package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"gatehouse-backend/internal/auth"
)

// loginHandler handles POST /api/auth/login
func loginHandler(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "username and password are required",
		})
	}

	ipAddress := c.RealIP()
	userAgent := c.Request().UserAgent()

	result, err := authService.Login(c.Request().Context(), req, ipAddress, userAgent)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid username or password",
			})
		}
		c.Logger().Error("login error: ", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "authentication failed",
		})
	}

	rateLimiterSuccess(c)
	setSessionCookie(c, result.Token, result.ExpiresAt)

	if result.SecondFactorRequired {
		// Delivery channel for the one-time code. A real deployment
		// would send mail or SMS here.
		c.Logger().Debugf("second factor code for %s: %s", result.User.Username, result.OTPCode)

		return c.JSON(http.StatusOK, map[string]any{
			"second_factor_required": true,
			"expires_at":             result.ExpiresAt,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user":       result.User,
		"expires_at": result.ExpiresAt,
		"csrf_token": csrf.GenerateToken(result.Token),
	})
}

// verifyOTPRequest is the body of POST /api/auth/otp
type verifyOTPRequest struct {
	Code string `json:"code"`
}

// verifyOTPHandler handles POST /api/auth/otp, the second step of the
// multi-step login flow.
func verifyOTPHandler(c echo.Context) error {
	var req verifyOTPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	token := auth.TokenFromRequest(c, cookieName)
	if token == "" || req.Code == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "verification failed",
		})
	}

	result, err := authService.VerifySecondFactor(c.Request().Context(), token, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "verification failed",
			})
		}
		c.Logger().Error("second factor error: ", err)
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

// logoutHandler handles POST /api/auth/logout
func logoutHandler(c echo.Context) error {
	token := auth.TokenFromRequest(c, cookieName)
	if token != "" {
		csrf.InvalidateSession(token)
		if err := authService.Logout(c.Request().Context(), token); err != nil {
			c.Logger().Error("logout error: ", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"error": "logout failed",
			})
		}
	}

	clearSessionCookie(c)

	return c.JSON(http.StatusOK, map[string]string{
		"message": "logged out",
	})
}

// getCurrentUser handles GET /api/auth/me
func getCurrentUser(c echo.Context) error {
	principal := auth.PrincipalFromContext(c)
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "authentication required",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user":       principal.User,
		"expires_at": principal.Session.ExpiresAt,
	})
}

// rateLimiterSuccess resets the login rate limit for the client.
func rateLimiterSuccess(c echo.Context) {
	if rateLimiter != nil {
		rateLimiter.RecordSuccess(c.RealIP())
	}
}
