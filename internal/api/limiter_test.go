package api

import (
	"testing"

	"salonbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBuckets(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 0.5, Burst: 2})

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	wait := l.retryAfter("a")
	assert.GreaterOrEqual(t, wait, 1)
	assert.LessOrEqual(t, wait, 2)
	assert.Zero(t, newRateLimiter(config.APIRateLimitConfig{}).retryAfter("a"))
}

func TestRateLimiterDisabled(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{})
	for range 100 {
		assert.True(t, l.allow("a"))
	}
	assert.Equal(t, defaultBurst, l.burst)
}
