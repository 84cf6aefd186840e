package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySubmissionLimiter(t *testing.T) {
	limiter := NewMemorySubmissionLimiter()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := limiter.Allow(ctx, "c1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, _ := limiter.Allow(ctx, "c1", 2, time.Minute)
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(ctx, "c2", 2, time.Minute)
	assert.True(t, allowed)

	now = now.Add(time.Minute)
	allowed, _ = limiter.Allow(ctx, "c1", 2, time.Minute)
	assert.True(t, allowed, "window expired")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, limiter.Prune())
}
