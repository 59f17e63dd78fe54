package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"rootsignal.dev/scout/internal/scout/lock"
)

func newClient(t *testing.T) *redis.Client {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestAcquire_SecondCallerBlocked(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	l1, ok, err := lock.Acquire(ctx, client, "minneapolis-mn", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, l1)

	_, ok, err = lock.Acquire(ctx, client, "minneapolis-mn", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRelease_AllowsReacquire(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	l1, ok, err := lock.Acquire(ctx, client, "supervisor", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l1.Release(ctx))

	_, ok, err = lock.Acquire(ctx, client, "supervisor", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRelease_NotHeldAfterExpiry(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	l1, ok, err := lock.Acquire(ctx, client, "denver-co", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = client.Del(ctx, "scout:lock:denver-co").Result()
	require.NoError(t, err)

	err = l1.Release(ctx)
	require.ErrorIs(t, err, lock.ErrNotHeld)
}

func TestRefresh_ExtendsTTL(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	l1, ok, err := lock.Acquire(ctx, client, "chicago-il", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l1.Refresh(ctx))

	ttl, err := client.PTTL(ctx, "scout:lock:chicago-il").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}
