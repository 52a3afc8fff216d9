// internal/store/redisstore/redisstore.go
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lead-routing-workers/internal/models"
	"lead-routing-workers/internal/routing"
)

// reserveScript is the linearization point: the capacity check and the
// increment run as one server-side operation, so concurrent routers
// racing for an agent's last slot cannot both pass the check. Returns
// the new count, or -1 when the agent is full.
var reserveScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
local max = tonumber(ARGV[1])
if max <= 0 or count >= max then
  return -1
end
count = redis.call('INCR', KEYS[1])
redis.call('HSET', KEYS[2], 'leadId', ARGV[2], 'agentId', ARGV[3], 'state', ARGV[4], 'reservedAt', ARGV[5])
return count
`)

// releaseScript decrements with a floor of zero.
var releaseScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count > 0 then
  count = redis.call('DECR', KEYS[1])
else
  count = 0
end
redis.call('HSET', KEYS[2], 'state', ARGV[1])
return count
`)

// seedScript raises the counter to the snapshot value, never lowers it.
var seedScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '-1')
local snapshot = tonumber(ARGV[1])
if count < snapshot then
  redis.call('SET', KEYS[1], snapshot)
  return snapshot
end
return count
`)

// Store keeps per-agent lead counters and per-lead reservation records
// in Redis. All capacity mutations go through Lua scripts.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

func New(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "routing"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) counterKey(agentID string) string {
	return fmt.Sprintf("%s:agent:%s:active_leads", s.keyPrefix, agentID)
}

func (s *Store) reservationKey(leadID string) string {
	return fmt.Sprintf("%s:reservation:%s", s.keyPrefix, leadID)
}

func (s *Store) TryReserve(ctx context.Context, leadID, agentID string, maxCapacity int) (*models.Reservation, error) {
	reservedAt := time.Now().UTC()

	result, err := reserveScript.Run(ctx, s.client,
		[]string{s.counterKey(agentID), s.reservationKey(leadID)},
		maxCapacity, leadID, agentID, models.ReservationPending,
		reservedAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}
	if result < 0 {
		return nil, fmt.Errorf("%w: agent %s full at capacity %d", routing.ErrCapacityExceeded, agentID, maxCapacity)
	}

	return &models.Reservation{
		LeadID:     leadID,
		AgentID:    agentID,
		ReservedAt: reservedAt,
		State:      models.ReservationPending,
	}, nil
}

func (s *Store) Release(ctx context.Context, res *models.Reservation) error {
	_, err := releaseScript.Run(ctx, s.client,
		[]string{s.counterKey(res.AgentID), s.reservationKey(res.LeadID)},
		models.ReservationReleased,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}
	res.State = models.ReservationReleased
	return nil
}

func (s *Store) Commit(ctx context.Context, res *models.Reservation) error {
	key := s.reservationKey(res.LeadID)

	if _, err := s.client.HGet(ctx, key, "agentId").Result(); err != nil {
		if err == redis.Nil {
			return fmt.Errorf("unknown reservation for lead %s", res.LeadID)
		}
		return fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}

	if err := s.client.HSet(ctx, key, "state", models.ReservationCommitted).Err(); err != nil {
		return fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}
	res.State = models.ReservationCommitted
	return nil
}

func (s *Store) CurrentCount(ctx context.Context, agentID string) (int, error) {
	val, err := s.client.Get(ctx, s.counterKey(agentID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}
	return val, nil
}

func (s *Store) Seed(ctx context.Context, agentID string, count int) error {
	if count < 0 {
		count = 0
	}
	_, err := seedScript.Run(ctx, s.client,
		[]string{s.counterKey(agentID)}, count,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}
	return nil
}

// ReservationState reads back the stored reservation record, mainly for
// tests and operational checks.
func (s *Store) ReservationState(ctx context.Context, leadID string) (string, error) {
	state, err := s.client.HGet(ctx, s.reservationKey(leadID), "state").Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", routing.ErrStoreUnavailable, err)
	}
	return state, nil
}

var _ routing.ReservationStore = (*Store)(nil)
