package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimiter throttles login attempts per client IP.
type RateLimiter struct {
	mu       sync.RWMutex
	attempts map[string]*attemptInfo

	maxAttempts int
	window      time.Duration
	blockTime   time.Duration

	done chan struct{}
}

type attemptInfo struct {
	count     int
	firstTry  time.Time
	blockedAt time.Time
}

// NewRateLimiter creates a rate limiter allowing maxAttempts per window,
// blocking for blockTime once exceeded.
func NewRateLimiter(maxAttempts int, window, blockTime time.Duration) *RateLimiter {
	rl := &RateLimiter{
		attempts:    make(map[string]*attemptInfo),
		maxAttempts: maxAttempts,
		window:      window,
		blockTime:   blockTime,
		done:        make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow checks if the given key (IP address) may attempt a login.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	info, exists := rl.attempts[key]

	if !exists {
		rl.attempts[key] = &attemptInfo{count: 1, firstTry: now}
		return true
	}

	if !info.blockedAt.IsZero() {
		if now.Sub(info.blockedAt) < rl.blockTime {
			return false
		}
		// Block expired, reset
		info.count = 1
		info.firstTry = now
		info.blockedAt = time.Time{}
		return true
	}

	if now.Sub(info.firstTry) > rl.window {
		// Window expired, reset
		info.count = 1
		info.firstTry = now
		return true
	}

	info.count++
	if info.count > rl.maxAttempts {
		info.blockedAt = now
		return false
	}

	return true
}

// RecordSuccess resets the attempt count after a successful login.
func (rl *RateLimiter) RecordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// BlockedUntil returns when the block expires, or zero time if the key
// is not blocked.
func (rl *RateLimiter) BlockedUntil(key string) time.Time {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	info, exists := rl.attempts[key]
	if !exists || info.blockedAt.IsZero() {
		return time.Time{}
	}

	blockedUntil := info.blockedAt.Add(rl.blockTime)
	if time.Now().After(blockedUntil) {
		return time.Time{}
	}

	return blockedUntil
}

// Stop terminates the background cleanup loop.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

// cleanup removes stale entries periodically
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, info := range rl.attempts {
				windowExpired := now.Sub(info.firstTry) > rl.window
				blockExpired := info.blockedAt.IsZero() || now.Sub(info.blockedAt) > rl.blockTime
				if windowExpired && blockExpired {
					delete(rl.attempts, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Middleware returns an Echo middleware that rejects rate-limited
// clients with 429 before the handler runs.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()

			if !rl.Allow(key) {
				retryAfter := int(time.Until(rl.BlockedUntil(key)).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}

				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error":       "too many login attempts",
					"retry_after": retryAfter,
				})
			}

			return next(c)
		}
	}
}
