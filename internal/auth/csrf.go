package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"gatehouse-backend/internal/session"
)

// CSRFProtection issues tokens bound to a session. Tokens live in
// memory keyed by their hash and expire with the session ttl.
type CSRFProtection struct {
	mu     sync.RWMutex
	tokens map[string]*csrfToken
	ttl    time.Duration
	done   chan struct{}
}

type csrfToken struct {
	sessionHash string
	createdAt   time.Time
}

// NewCSRFProtection creates a CSRF token registry whose tokens expire
// after ttl.
func NewCSRFProtection(ttl time.Duration) *CSRFProtection {
	c := &CSRFProtection{
		tokens: make(map[string]*csrfToken),
		ttl:    ttl,
		done:   make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// GenerateToken generates a CSRF token bound to the given session id.
func (c *CSRFProtection) GenerateToken(sessionID string) string {
	tokenBytes := make([]byte, 32)
	rand.Read(tokenBytes)
	token := hex.EncodeToString(tokenBytes)

	c.mu.Lock()
	c.tokens[session.HashID(token)] = &csrfToken{
		sessionHash: session.HashID(sessionID),
		createdAt:   time.Now(),
	}
	c.mu.Unlock()

	return token
}

// ValidateToken checks that a token exists, is not expired and belongs
// to the given session.
func (c *CSRFProtection) ValidateToken(token, sessionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, exists := c.tokens[session.HashID(token)]
	if !exists {
		return false
	}
	if time.Since(t.createdAt) > c.ttl {
		return false
	}

	return t.sessionHash == session.HashID(sessionID)
}

// InvalidateSession drops every token bound to a session, e.g. at logout.
func (c *CSRFProtection) InvalidateSession(sessionID string) {
	hash := session.HashID(sessionID)

	c.mu.Lock()
	for key, t := range c.tokens {
		if t.sessionHash == hash {
			delete(c.tokens, key)
		}
	}
	c.mu.Unlock()
}

// Stop terminates the background cleanup loop.
func (c *CSRFProtection) Stop() {
	close(c.done)
}

// cleanup removes expired tokens periodically
func (c *CSRFProtection) cleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, t := range c.tokens {
				if now.Sub(t.createdAt) > c.ttl {
					delete(c.tokens, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Middleware validates the X-CSRF-Token header on state-changing
// requests made with an authenticated session. Safe methods and
// anonymous requests pass through; anonymous requests are the auth
// middleware's problem.
func (c *CSRFProtection) Middleware(cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			method := ctx.Request().Method
			if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
				return next(ctx)
			}

			token := TokenFromRequest(ctx, cookieName)
			if token == "" {
				return next(ctx)
			}

			csrfToken := ctx.Request().Header.Get("X-CSRF-Token")
			if csrfToken == "" || !c.ValidateToken(csrfToken, token) {
				return ctx.JSON(http.StatusForbidden, map[string]string{
					"error": "invalid CSRF token",
				})
			}

			return next(ctx)
		}
	}
}
