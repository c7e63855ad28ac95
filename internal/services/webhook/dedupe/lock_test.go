package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocks(t *testing.T) (*RedisLockManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLockManager(client), mr
}

func TestAcquire_MutualExclusion(t *testing.T) {
	locks, _ := newTestLocks(t)
	ctx := context.Background()

	ok, err := locks.Acquire(ctx, "twilio:SM1", "holder-a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locks.Acquire(ctx, "twilio:SM1", "holder-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRelease_AllowsReacquire(t *testing.T) {
	locks, _ := newTestLocks(t)
	ctx := context.Background()

	ok, err := locks.Acquire(ctx, "twilio:SM1", "holder-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locks.Release(ctx, "twilio:SM1", "holder-a"))

	ok, err = locks.Acquire(ctx, "twilio:SM1", "holder-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_OnlyByHolder(t *testing.T) {
	locks, _ := newTestLocks(t)
	ctx := context.Background()

	ok, err := locks.Acquire(ctx, "twilio:SM1", "holder-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale holder must not free someone else's lock.
	require.NoError(t, locks.Release(ctx, "twilio:SM1", "holder-stale"))

	ok, err = locks.Acquire(ctx, "twilio:SM1", "holder-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLock_ExpiresByTTL(t *testing.T) {
	locks, mr := newTestLocks(t)
	ctx := context.Background()

	ok, err := locks.Acquire(ctx, "twilio:SM1", "holder-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = locks.Acquire(ctx, "twilio:SM1", "holder-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRelease_MissingLockIsNoop(t *testing.T) {
	locks, _ := newTestLocks(t)
	assert.NoError(t, locks.Release(context.Background(), "never-held", "holder-a"))
}
