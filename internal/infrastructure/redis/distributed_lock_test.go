package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockManager_AcquireLock(t *testing.T) {
	client, err := NewClient(&Config{Host: "localhost", Port: "6379"})
	if err != nil {
		t.Skip("Redis not available")
	}
	defer client.Close()

	ctx := context.Background()
	manager := NewLockManager(client)

	t.Run("ロックを取得できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-event-1", 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, lock)
		defer lock.Release(ctx)
	})

	t.Run("同じイベントのロックは取得できない", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-event-2", 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		lock2, err := manager.AcquireLock(ctx, "test-event-2", 5*time.Second)
		assert.ErrorIs(t, err, ErrLockNotAcquired)
		assert.Nil(t, lock2)
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-event-3", 5*time.Second)
		require.NoError(t, err)

		err = lock1.Release(ctx)
		require.NoError(t, err)

		lock2, err := manager.AcquireLock(ctx, "test-event-3", 5*time.Second)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("リトライで取得できる", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-event-4", 500*time.Millisecond)
		require.NoError(t, err)

		go func() {
			time.Sleep(300 * time.Millisecond)
			lock1.Release(ctx)
		}()

		lock2, err := manager.AcquireLockWithRetry(ctx, "test-event-4", 5*time.Second, 5, 100*time.Millisecond)
		require.NoError(t, err)
		defer lock2.Release(ctx)
	})

	t.Run("ロックを延長できる", func(t *testing.T) {
		lock, err := manager.AcquireLock(ctx, "test-event-extend", 1*time.Second)
		require.NoError(t, err)
		defer lock.Release(ctx)

		err = lock.Extend(ctx, 5*time.Second)
		require.NoError(t, err)
	})

	t.Run("他者のロックは解放できない", func(t *testing.T) {
		lock1, err := manager.AcquireLock(ctx, "test-event-5", 5*time.Second)
		require.NoError(t, err)
		defer lock1.Release(ctx)

		// 同じキーに対する別のロックハンドルを偽造
		stale := &DistributedLock{client: client, key: "lock:test-event-5", value: "other-owner"}
		err = stale.Release(ctx)
		assert.ErrorIs(t, err, ErrLockNotOwned)
	})
}
