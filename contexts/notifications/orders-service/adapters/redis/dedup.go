package redisadapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domainerrors "courier/contexts/notifications/orders-service/domain/errors"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "courier:orders:event:"
	pendingState   = "pending"
	confirmedState = "done"
)

// DedupStore reserves consumed event ids in Redis. A key holds the event
// state and payload hash: a pending lease while the result is applied, then
// a confirmed marker until it expires or is released.
type DedupStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewDedupStore(client *redis.Client) *DedupStore {
	return &DedupStore{client: client, now: time.Now}
}

func (s *DedupStore) ReserveEvent(ctx context.Context, eventID string, payloadHash string, leaseUntil time.Time) (bool, error) {
	ttl := s.ttlUntil(leaseUntil, time.Minute)
	key := eventKeyPrefix + eventID

	reserved, err := s.client.SetNX(ctx, key, pendingState+":"+payloadHash, ttl).Result()
	if err != nil {
		return false, err
	}
	if reserved {
		return false, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET; try once more.
			reserved, err = s.client.SetNX(ctx, key, pendingState+":"+payloadHash, ttl).Result()
			if err != nil {
				return false, err
			}
			if reserved {
				return false, nil
			}
			return false, fmt.Errorf("%w: %s", domainerrors.ErrEventInFlight, eventID)
		}
		return false, err
	}

	state, hash, _ := strings.Cut(existing, ":")
	if hash != payloadHash {
		return false, fmt.Errorf("%w: event %s replayed with a different payload", domainerrors.ErrMalformedDeliveryResult, eventID)
	}
	if state == confirmedState {
		return true, nil
	}
	return false, fmt.Errorf("%w: %s", domainerrors.ErrEventInFlight, eventID)
}

func (s *DedupStore) ConfirmEvent(ctx context.Context, eventID string, payloadHash string, expiresAt time.Time) error {
	ttl := s.ttlUntil(expiresAt, time.Hour)
	return s.client.Set(ctx, eventKeyPrefix+eventID, confirmedState+":"+payloadHash, ttl).Err()
}

func (s *DedupStore) ReleaseEvent(ctx context.Context, eventID string) error {
	return s.client.Del(ctx, eventKeyPrefix+eventID).Err()
}

func (s *DedupStore) ttlUntil(at time.Time, fallback time.Duration) time.Duration {
	ttl := at.Sub(s.now())
	if ttl <= 0 {
		return fallback
	}
	return ttl
}
