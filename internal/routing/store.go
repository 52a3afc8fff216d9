// internal/routing/store.go
package routing

import (
	"context"
	"errors"

	"lead-routing-workers/internal/models"
)

// Sentinel errors surfaced by the routing engine and its stores. Workers
// map these onto BPMN error codes; callers test them with errors.Is.
var (
	// ErrInvalidLead rejects the whole routing request.
	ErrInvalidLead = errors.New("invalid lead")

	// ErrCapacityExceeded is the expected bounce when an agent has no
	// free slot. It never mutates the store.
	ErrCapacityExceeded = errors.New("agent at capacity")

	// ErrStoreUnavailable wraps transport failures of the reservation
	// store. Retryable.
	ErrStoreUnavailable = errors.New("reservation store unavailable")

	// ErrPersistFailed wraps assignment persistence failures. The
	// reservation has been released by the time callers see it.
	ErrPersistFailed = errors.New("assignment persist failed")

	// ErrDuplicateAssignment reports a lead that already holds a
	// committed assignment.
	ErrDuplicateAssignment = errors.New("duplicate assignment for lead")
)

// ReservationStore owns the authoritative per-agent lead counters. The
// counter is the linearization point for concurrent routing: TryReserve
// performs an atomic check-and-increment against maxCapacity, so two
// routers racing for a last slot cannot both win.
type ReservationStore interface {
	// TryReserve atomically increments the agent's counter when it is
	// below maxCapacity and returns a pending reservation. When the
	// agent is full it returns ErrCapacityExceeded without mutating
	// anything.
	TryReserve(ctx context.Context, leadID, agentID string, maxCapacity int) (*models.Reservation, error)

	// Release decrements the agent's counter, never below zero, and
	// marks the reservation released.
	Release(ctx context.Context, res *models.Reservation) error

	// Commit marks the reservation durable. Counters do not change.
	Commit(ctx context.Context, res *models.Reservation) error

	// CurrentCount reports the agent's active lead counter.
	CurrentCount(ctx context.Context, agentID string) (int, error)

	// Seed initializes the agent's counter from a pool snapshot. It
	// only ever raises the stored value: reservations taken by
	// concurrent routers must not be erased by a stale snapshot.
	Seed(ctx context.Context, agentID string, count int) error
}

// AssignmentPersister stores the durable assignment record for a
// reserved lead. Implementations must reject a second record for the
// same lead with ErrDuplicateAssignment.
type AssignmentPersister interface {
	Persist(ctx context.Context, assignment *models.Assignment) error
}
