// internal/store/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"lead-routing-workers/internal/models"
	"lead-routing-workers/internal/routing"
)

const shardCount = 16

// Store is an in-process reservation store. Counters are sharded by
// agent id so unrelated agents never contend on one lock; operations on
// a single agent serialize through its shard mutex, which is what makes
// TryReserve linearizable per agent.
type Store struct {
	shards [shardCount]*shard

	resMu        sync.Mutex
	reservations map[string]*models.Reservation
}

type shard struct {
	mu       sync.Mutex
	counters map[string]int
}

func New() *Store {
	s := &Store{
		reservations: make(map[string]*models.Reservation),
	}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]int)}
	}
	return s
}

func (s *Store) shardFor(agentID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return s.shards[h.Sum32()%shardCount]
}

func (s *Store) TryReserve(_ context.Context, leadID, agentID string, maxCapacity int) (*models.Reservation, error) {
	sh := s.shardFor(agentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current := sh.counters[agentID]
	if maxCapacity <= 0 || current >= maxCapacity {
		return nil, fmt.Errorf("%w: agent %s at %d/%d", routing.ErrCapacityExceeded, agentID, current, maxCapacity)
	}
	sh.counters[agentID] = current + 1

	reservation := &models.Reservation{
		LeadID:     leadID,
		AgentID:    agentID,
		ReservedAt: time.Now().UTC(),
		State:      models.ReservationPending,
	}

	s.resMu.Lock()
	s.reservations[leadID] = reservation
	s.resMu.Unlock()

	return reservation, nil
}

func (s *Store) Release(_ context.Context, res *models.Reservation) error {
	sh := s.shardFor(res.AgentID)
	sh.mu.Lock()
	if sh.counters[res.AgentID] > 0 {
		sh.counters[res.AgentID]--
	}
	sh.mu.Unlock()

	s.resMu.Lock()
	if stored, ok := s.reservations[res.LeadID]; ok {
		stored.State = models.ReservationReleased
	}
	s.resMu.Unlock()

	res.State = models.ReservationReleased
	return nil
}

func (s *Store) Commit(_ context.Context, res *models.Reservation) error {
	s.resMu.Lock()
	defer s.resMu.Unlock()

	stored, ok := s.reservations[res.LeadID]
	if !ok {
		return fmt.Errorf("unknown reservation for lead %s", res.LeadID)
	}
	stored.State = models.ReservationCommitted
	res.State = models.ReservationCommitted
	return nil
}

func (s *Store) CurrentCount(_ context.Context, agentID string) (int, error) {
	sh := s.shardFor(agentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.counters[agentID], nil
}

// Seed raises the counter to the snapshot value. It never lowers it, so
// reservations taken by concurrent routers survive a re-seed from a
// stale pool snapshot.
func (s *Store) Seed(_ context.Context, agentID string, count int) error {
	if count < 0 {
		count = 0
	}
	sh := s.shardFor(agentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.counters[agentID] < count {
		sh.counters[agentID] = count
	}
	return nil
}

var _ routing.ReservationStore = (*Store)(nil)
