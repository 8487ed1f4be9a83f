// Package locktest holds behaviour checks shared by every ports.Locker backend.
package locktest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaicod/internal/domain/ports"
)

// Run executes the shared locker checks
func Run(t *testing.T, locker ports.Locker) {
	ctx := context.Background()
	key := func() string { return "topic:" + uuid.NewString() }

	t.Run("StateMachine", func(t *testing.T) {
		k := key()
		holder, err := locker.Holder(ctx, k)
		require.NoError(t, err)
		assert.Empty(t, holder)

		assert.ErrorIs(t, locker.Release(ctx, k, "a"), ports.ErrNotLocked)
		assert.ErrorIs(t, locker.Refresh(ctx, k, "a", time.Minute), ports.ErrNotLocked)

		require.NoError(t, locker.Acquire(ctx, k, "a", time.Minute))
		assert.ErrorIs(t, locker.Acquire(ctx, k, "b", time.Minute), ports.ErrAlreadyLocked)
		assert.ErrorIs(t, locker.Acquire(ctx, k, "a", time.Minute), ports.ErrAlreadyLocked)

		holder, err = locker.Holder(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, "a", holder)

		assert.ErrorIs(t, locker.Release(ctx, k, "b"), ports.ErrNotHolder)
		assert.ErrorIs(t, locker.Refresh(ctx, k, "b", time.Minute), ports.ErrNotHolder)
		require.NoError(t, locker.Refresh(ctx, k, "a", time.Minute))

		require.NoError(t, locker.Release(ctx, k, "a"))
		assert.ErrorIs(t, locker.Release(ctx, k, "a"), ports.ErrNotLocked)
		require.NoError(t, locker.Acquire(ctx, k, "b", time.Minute))
		require.NoError(t, locker.Release(ctx, k, "b"))
	})

	t.Run("Expiry", func(t *testing.T) {
		k := key()
		require.NoError(t, locker.Acquire(ctx, k, "a", 50*time.Millisecond))
		assert.Eventually(t, func() bool {
			return locker.Acquire(ctx, k, "b", time.Minute) == nil
		}, 2*time.Second, 10*time.Millisecond)
		assert.ErrorIs(t, locker.Release(ctx, k, "a"), ports.ErrNotHolder)
		require.NoError(t, locker.Release(ctx, k, "b"))
	})

	t.Run("SingleWinner", func(t *testing.T) {
		k := key()
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if locker.Acquire(ctx, k, uuid.NewString(), time.Minute) == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
