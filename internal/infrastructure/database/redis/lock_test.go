package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/DealScope/pkg/errors"
)

func TestMutex_LockUnlock(t *testing.T) {
	client, mr := newMiniClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("job-1", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))
	assert.True(t, mr.Exists("test:lock:job-1"))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("test:lock:job-1"))
}

func TestMutex_Contention(t *testing.T) {
	client, _ := newMiniClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("job-1", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))
	lock2 := factory.NewMutex("job-1", WithRetryCount(1), WithRetryDelay(10*time.Millisecond))

	require.NoError(t, lock1.Lock(ctx))

	err := lock2.Lock(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict))

	ok, err := lock2.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock1.Unlock(ctx))
	assert.NoError(t, lock2.Lock(ctx))
}

func TestMutex_UnlockNotHeld(t *testing.T) {
	client, _ := newMiniClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())

	lock := factory.NewMutex("job-1")
	err := lock.Unlock(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock not held")
}

func TestMutex_ExpiresAfterTTL(t *testing.T) {
	client, mr := newMiniClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock1 := factory.NewMutex("job-1", WithLockTTL(time.Second))
	require.NoError(t, lock1.Lock(ctx))
	mr.FastForward(2 * time.Second)

	ok, err := factory.NewMutex("job-1").TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	extended, err := lock1.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)
}

func TestMutex_Extend(t *testing.T) {
	client, mr := newMiniClient(t)
	factory := NewLockFactory(client, logging.NewNopLogger())
	ctx := context.Background()

	lock := factory.NewMutex("job-1", WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))

	ok, err := lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("test:lock:job-1"))
}
