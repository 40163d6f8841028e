package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisGuard(t *testing.T) (*RedisBruteForceGuard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisBruteForceGuard(client, 3, 5*time.Minute), mr
}

func TestRedisBruteForceGuard_LocksAfterMaxAttempts(t *testing.T) {
	guard, mr := newRedisGuard(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		justLocked, err := guard.RegisterFailedAttempt(ctx, "harry")
		require.NoError(t, err)
		assert.False(t, justLocked)
	}
	locked, err := guard.IsLocked(ctx, "harry")
	require.NoError(t, err)
	assert.False(t, locked)

	justLocked, err := guard.RegisterFailedAttempt(ctx, "Harry")
	require.NoError(t, err)
	assert.True(t, justLocked)

	locked, err = guard.IsLocked(ctx, "harry")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.True(t, mr.Exists("bf:lock:harry"))

	justLocked, err = guard.RegisterFailedAttempt(ctx, "harry")
	require.NoError(t, err)
	assert.False(t, justLocked)

	attempts, err := guard.Attempts(ctx, "harry")
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestRedisBruteForceGuard_LockExpires(t *testing.T) {
	guard, mr := newRedisGuard(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guard.RegisterFailedAttempt(ctx, "harry")
		require.NoError(t, err)
	}

	mr.FastForward(4 * time.Minute)
	locked, err := guard.IsLocked(ctx, "harry")
	require.NoError(t, err)
	assert.True(t, locked)

	mr.FastForward(time.Minute + time.Second)
	locked, err = guard.IsLocked(ctx, "harry")
	require.NoError(t, err)
	assert.False(t, locked)

	attempts, err := guard.Attempts(ctx, "harry")
	require.NoError(t, err)
	assert.Zero(t, attempts)
}

func TestRedisBruteForceGuard_Reset(t *testing.T) {
	guard, mr := newRedisGuard(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := guard.RegisterFailedAttempt(ctx, "harry")
		require.NoError(t, err)
	}
	require.NoError(t, guard.ResetAttempts(ctx, "harry"))

	assert.False(t, mr.Exists("bf:attempts:harry"))
	assert.False(t, mr.Exists("bf:lock:harry"))

	locked, err := guard.IsLocked(ctx, "harry")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRedisBruteForceGuard_Unavailable(t *testing.T) {
	guard, mr := newRedisGuard(t)
	mr.Close()

	_, err := guard.IsLocked(context.Background(), "harry")
	assert.ErrorIs(t, err, ErrGuardUnavailable)

	_, err = guard.RegisterFailedAttempt(context.Background(), "harry")
	assert.ErrorIs(t, err, ErrGuardUnavailable)
}

func TestRedisBruteForceGuard_WindowFollowsLastFailure(t *testing.T) {
	guard, mr := newRedisGuard(t)
	ctx := context.Background()

	_, err := guard.RegisterFailedAttempt(ctx, "harry")
	require.NoError(t, err)

	mr.FastForward(4 * time.Minute)
	_, err = guard.RegisterFailedAttempt(ctx, "harry")
	require.NoError(t, err)

	// six minutes after the first failure, two after the second
	mr.FastForward(2 * time.Minute)
	justLocked, err := guard.RegisterFailedAttempt(ctx, "harry")
	require.NoError(t, err)
	assert.True(t, justLocked)

	locked, err := guard.IsLocked(ctx, "harry")
	require.NoError(t, err)
	assert.True(t, locked)
}
