package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSRF_TokenRoundTrip(t *testing.T) {
	c := NewCSRFProtection(time.Hour)
	defer c.Stop()

	token := c.GenerateToken("session-1")
	require.NotEmpty(t, token)

	assert.True(t, c.ValidateToken(token, "session-1"))
}

func TestCSRF_TokenBoundToSession(t *testing.T) {
	c := NewCSRFProtection(time.Hour)
	defer c.Stop()

	token := c.GenerateToken("session-1")
	assert.False(t, c.ValidateToken(token, "session-2"))
}

func TestCSRF_UnknownToken(t *testing.T) {
	c := NewCSRFProtection(time.Hour)
	defer c.Stop()

	assert.False(t, c.ValidateToken("made-up", "session-1"))
}

func TestCSRF_TokenExpires(t *testing.T) {
	c := NewCSRFProtection(10 * time.Millisecond)
	defer c.Stop()

	token := c.GenerateToken("session-1")
	require.True(t, c.ValidateToken(token, "session-1"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.ValidateToken(token, "session-1"))
}

func TestCSRF_InvalidateSessionDropsAllTokens(t *testing.T) {
	c := NewCSRFProtection(time.Hour)
	defer c.Stop()

	first := c.GenerateToken("session-1")
	second := c.GenerateToken("session-1")
	other := c.GenerateToken("session-2")

	c.InvalidateSession("session-1")

	assert.False(t, c.ValidateToken(first, "session-1"))
	assert.False(t, c.ValidateToken(second, "session-1"))
	assert.True(t, c.ValidateToken(other, "session-2"))
}
