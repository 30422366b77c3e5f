package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemLocksMutualExclusion(t *testing.T) {
	var locks itemLocks

	const goroutines = 32
	var inSection int32
	var maxSeen int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.acquire(context.Background(), "item-1", time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			inSection++
			if inSection > maxSeen {
				maxSeen = inSection
			}
			mu.Unlock()

			mu.Lock()
			inSection--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen, "only one holder per item at a time")
}

func TestItemLocksIndependentItems(t *testing.T) {
	var locks itemLocks

	releaseA, err := locks.acquire(context.Background(), "item-a", time.Second)
	require.NoError(t, err)
	defer releaseA()

	// A held lock on one item must not block another item.
	releaseB, err := locks.acquire(context.Background(), "item-b", 50*time.Millisecond)
	require.NoError(t, err)
	releaseB()
}

func TestItemLocksTimeout(t *testing.T) {
	var locks itemLocks

	release, err := locks.acquire(context.Background(), "item-1", time.Second)
	require.NoError(t, err)
	defer release()

	_, err = locks.acquire(context.Background(), "item-1", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockWaitTimeout)
}

func TestItemLocksContextCancel(t *testing.T) {
	var locks itemLocks

	release, err := locks.acquire(context.Background(), "item-1", time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = locks.acquire(ctx, "item-1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
