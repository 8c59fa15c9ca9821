package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a Redis client backed by miniredis, an in-memory
// Redis mock that doesn't require a real server.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	return client, mr
}

func cleanupTestRedis(client *redis.Client, mr *miniredis.Miniredis) {
	if client != nil {
		client.Close()
	}
	if mr != nil {
		mr.Close()
	}
}

func TestOrderLock_AcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	orderID := "order-123"

	// First acquisition wins.
	acquired, err := r.AcquireOrderLock(orderID)
	require.NoError(t, err)
	assert.True(t, acquired, "First acquisition should succeed")

	// Second acquisition on the same order is rejected.
	acquired, err = r.AcquireOrderLock(orderID)
	require.NoError(t, err)
	assert.False(t, acquired, "Lock should not be re-acquirable while held")

	locked, err := r.IsOrderLocked(orderID)
	require.NoError(t, err)
	assert.True(t, locked)

	// Release and re-acquire.
	err = r.ReleaseOrderLock(orderID)
	require.NoError(t, err)

	acquired, err = r.AcquireOrderLock(orderID)
	require.NoError(t, err)
	assert.True(t, acquired, "Lock should be acquirable after release")

	r.ReleaseOrderLock(orderID)
}

func TestOrderLock_IndependentOrders(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	acquired, err := r.AcquireOrderLock("order-A")
	require.NoError(t, err)
	assert.True(t, acquired)

	// A lock on one order never blocks another.
	acquired, err = r.AcquireOrderLock("order-B")
	require.NoError(t, err)
	assert.True(t, acquired)

	r.ReleaseOrderLock("order-A")
	r.ReleaseOrderLock("order-B")
}

func TestOrderLock_ReleaseIsIdempotent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	// Releasing a lock that was never taken is a no-op.
	err := r.ReleaseOrderLock("never-locked")
	require.NoError(t, err)

	acquired, err := r.AcquireOrderLock("order-X")
	require.NoError(t, err)
	assert.True(t, acquired)

	err = r.ReleaseOrderLock("order-X")
	require.NoError(t, err)
	err = r.ReleaseOrderLock("order-X")
	require.NoError(t, err)
}

func TestOrderLock_ExpiresOnItsOwn(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	acquired, err := r.AcquireOrderLock("order-crash")
	require.NoError(t, err)
	assert.True(t, acquired)

	// Simulate the holder dying: miniredis fast-forwards past the TTL.
	mr.FastForward(3 * time.Minute)

	acquired, err = r.AcquireOrderLock("order-crash")
	require.NoError(t, err)
	assert.True(t, acquired, "Lock should be acquirable after TTL expiry")
}

func TestAllocationLock_AcquireAndRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	raffleID := "raffle-1"

	acquired, err := r.AcquireAllocationLock(raffleID)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = r.AcquireAllocationLock(raffleID)
	require.NoError(t, err)
	assert.False(t, acquired, "Allocation lock should not be re-acquirable while held")

	// The allocation lock for one raffle never blocks the confirmation lock
	// for an order, they live in separate keyspaces.
	acquired, err = r.AcquireOrderLock(raffleID)
	require.NoError(t, err)
	assert.True(t, acquired)

	err = r.ReleaseAllocationLock(raffleID)
	require.NoError(t, err)

	acquired, err = r.AcquireAllocationLock(raffleID)
	require.NoError(t, err)
	assert.True(t, acquired, "Allocation lock should be acquirable after release")
}

func TestOrderLock_ConcurrentConfirmations(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer cleanupTestRedis(client, mr)

	r := &Redis{
		Client: client,
		Logger: log.Default(),
	}

	// Simulate webhook redeliveries racing to settle the same order: exactly
	// one goroutine may hold the lock at a time.
	const numGoroutines = 20
	orderID := "order-race"

	var wg sync.WaitGroup
	winners := 0
	var mu sync.Mutex

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			acquired, err := r.AcquireOrderLock(orderID)
			if err == nil && acquired {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	r.ReleaseOrderLock(orderID)

	assert.Equal(t, 1, winners, fmt.Sprintf("exactly one of %d deliveries should settle", numGoroutines))
}
