/*
Package cache provides a Redis-backed short-term hold lock for inventory
units.

PURPOSE:
  While a booking request is in flight, a SetNX hold narrows the race
  window between instances competing for the same sub-counter. The hold
  is advisory: the durable overbooking guarantee is the conditional
  update in the store, and the booking service runs fine with a nil lock.
*/
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voyago/travel-engine/booking"
	"github.com/voyago/travel-engine/inventory"
)

type HoldLock struct {
	client *redis.Client
}

func NewHoldLock(addr, password string, db int) *HoldLock {
	return &HoldLock{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func holdKey(itemType inventory.ItemType, itemID, quantityKind string) string {
	return fmt.Sprintf("hold:%s:%s:%s", itemType, itemID, quantityKind)
}

// AcquireHold takes the hold if nobody else has it. Returns false when
// another request currently holds the same sub-counter.
func (l *HoldLock) AcquireHold(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, holdKey(itemType, itemID, quantityKind), "1", ttl).Result()
}

// ReleaseHold drops the hold. Expiry covers the case where release is
// never reached.
func (l *HoldLock) ReleaseHold(ctx context.Context, itemType inventory.ItemType, itemID, quantityKind string) error {
	return l.client.Del(ctx, holdKey(itemType, itemID, quantityKind)).Err()
}

func (l *HoldLock) Close() error {
	return l.client.Close()
}

var _ booking.HoldLock = (*HoldLock)(nil)
