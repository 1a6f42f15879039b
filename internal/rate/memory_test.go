package rate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllowsUpToMax(t *testing.T) {
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	res, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestMemoryLimiterResetsOnNewWindow(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	base := time.Date(2026, 8, 30, 10, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	_, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	res, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, res.Allowed)

	l.now = func() time.Time { return base.Add(time.Minute) }
	res, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}
