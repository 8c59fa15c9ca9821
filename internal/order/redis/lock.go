package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getConfirmLockDuration returns how long a confirmation lock is held before
// Redis expires it on its own. The TTL is the crash safety net: a worker that
// dies mid-settlement must not leave the order locked forever.
func (r *Redis) getConfirmLockDuration() time.Duration {
	defaultDuration := 2 * time.Minute

	lockTTLStr := os.Getenv("CONFIRM_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid CONFIRM_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 2 minutes")
		return defaultDuration
	}
	return time.Duration(lockTTLSec) * time.Second
}

// AcquireOrderLock takes the per-order confirmation lock. Webhook redeliveries
// and the admin manual-pay action race through here; only one caller settles.
func (r *Redis) AcquireOrderLock(orderID string) (bool, error) {
	key := "confirm_lock:" + orderID
	return r.Client.SetNX(context.Background(), key, orderID, r.getConfirmLockDuration()).Result()
}

// ReleaseOrderLock drops the confirmation lock if this order still owns it.
func (r *Redis) ReleaseOrderLock(orderID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("confirm_lock:%s", orderID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == orderID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// AcquireAllocationLock takes the per-raffle allocation lock. It is advisory:
// the quotas unique index keeps concurrent allocations correct, the lock only
// serializes them so two paid orders against the same raffle do not spend
// their time colliding on serial numbers.
func (r *Redis) AcquireAllocationLock(raffleID string) (bool, error) {
	key := "alloc_lock:" + raffleID
	return r.Client.SetNX(context.Background(), key, raffleID, r.getConfirmLockDuration()).Result()
}

// ReleaseAllocationLock drops the allocation lock if this raffle still owns it.
func (r *Redis) ReleaseAllocationLock(raffleID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("alloc_lock:%s", raffleID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == raffleID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsOrderLocked reports whether a confirmation is currently in flight.
func (r *Redis) IsOrderLocked(orderID string) (bool, error) {
	key := "confirm_lock:" + orderID
	_, err := r.Client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
