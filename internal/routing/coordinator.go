// internal/routing/coordinator.go
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/common/metrics"
	"lead-routing-workers/internal/models"
)

// RouteResult is the outcome of one routing attempt. RankedCandidates
// is populated whenever ranking succeeded, regardless of the final
// status, so process variables always carry the full decision audit.
type RouteResult struct {
	LeadID           string                 `json:"leadId"`
	Status           string                 `json:"status"`
	AgentID          string                 `json:"agentId,omitempty"`
	Rank             int                    `json:"rank,omitempty"`
	Breakdown        *models.ScoreBreakdown `json:"scoreBreakdown,omitempty"`
	RankedCandidates []models.RankedAgent   `json:"rankedCandidates"`
	Skipped          []models.SkippedAgent  `json:"skippedAgents,omitempty"`
}

// Coordinator walks a ranked agent list and converts the first free
// slot into a committed assignment.
type Coordinator struct {
	scorer    *Scorer
	store     ReservationStore
	persister AssignmentPersister
	logger    logger.Logger
}

func NewCoordinator(scorer *Scorer, store ReservationStore, persister AssignmentPersister, log logger.Logger) *Coordinator {
	return &Coordinator{
		scorer:    scorer,
		store:     store,
		persister: persister,
		logger:    log,
	}
}

// RouteLead ranks the pool and reserves the best available agent.
//
// Outcomes:
//   - assigned: a reservation was taken, the assignment persisted, and
//     the reservation committed.
//   - exhausted: every ranked candidate bounced with a capacity
//     conflict. Only a fully walked list produces this status.
//   - failed: infrastructure broke (store, persistence, or context
//     cancellation). A reservation taken before the failure has been
//     released. The returned error carries the sentinel for the caller
//     to map; a cancelled context is always failed, never exhausted.
func (c *Coordinator) RouteLead(ctx context.Context, lead models.Lead, pool []models.Agent) (*RouteResult, error) {
	return c.route(ctx, lead, pool, models.AssignmentTypeAutomatic)
}

// RouteBatch routes several leads against one shared pool snapshot.
// The reservation store carries capacity consumed by earlier leads into
// later attempts. One lead's failure does not stop the batch.
func (c *Coordinator) RouteBatch(ctx context.Context, leads []models.Lead, pool []models.Agent) []*RouteResult {
	results := make([]*RouteResult, 0, len(leads))
	for _, lead := range leads {
		result, err := c.route(ctx, lead, pool, models.AssignmentTypeBulk)
		if err != nil {
			c.logger.Warn("batch lead failed", map[string]interface{}{
				"leadId": lead.ID,
				"error":  err.Error(),
			})
		}
		results = append(results, result)
	}
	return results
}

func (c *Coordinator) route(ctx context.Context, lead models.Lead, pool []models.Agent, assignmentType string) (*RouteResult, error) {
	result := &RouteResult{
		LeadID: lead.ID,
		Status: models.RoutingStatusFailed,
	}

	ranked, skipped, err := c.scorer.RankAgents(lead, pool)
	if err != nil {
		metrics.RoutingDecisions.WithLabelValues(models.RoutingStatusFailed).Inc()
		return result, err
	}
	result.RankedCandidates = ranked
	result.Skipped = skipped
	metrics.AgentPoolSize.Observe(float64(len(ranked)))

	capacities := make(map[string]int, len(pool))
	for _, agent := range pool {
		capacities[agent.ID] = agent.MaxLeadCapacity
	}

	for _, candidate := range ranked {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.RoutingDecisions.WithLabelValues(models.RoutingStatusFailed).Inc()
			return result, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctxErr)
		}

		reservation, err := c.store.TryReserve(ctx, lead.ID, candidate.AgentID, capacities[candidate.AgentID])
		if errors.Is(err, ErrCapacityExceeded) {
			metrics.ReservationConflicts.Inc()
			c.logger.Debug("candidate at capacity, trying next", map[string]interface{}{
				"leadId":  lead.ID,
				"agentId": candidate.AgentID,
				"rank":    candidate.Rank,
			})
			continue
		}
		if err != nil {
			metrics.RoutingDecisions.WithLabelValues(models.RoutingStatusFailed).Inc()
			return result, err
		}

		return c.finalize(ctx, result, lead, candidate, reservation, assignmentType, len(ranked))
	}

	result.Status = models.RoutingStatusExhausted
	metrics.RoutingDecisions.WithLabelValues(models.RoutingStatusExhausted).Inc()
	c.logger.Info("agent pool exhausted", map[string]interface{}{
		"leadId":     lead.ID,
		"candidates": len(ranked),
		"skipped":    len(skipped),
	})
	return result, nil
}

// finalize persists the assignment for a held reservation and commits
// it. Every failure path releases the reservation before returning.
func (c *Coordinator) finalize(ctx context.Context, result *RouteResult, lead models.Lead, candidate models.RankedAgent, reservation *models.Reservation, assignmentType string, poolSize int) (*RouteResult, error) {
	assignment := &models.Assignment{
		ID:             uuid.New().String(),
		LeadID:         lead.ID,
		AgentID:        candidate.AgentID,
		Rank:           candidate.Rank,
		Breakdown:      candidate.Breakdown,
		AssignmentType: assignmentType,
		Reason: fmt.Sprintf("auto-routed: rank %d of %d, score %.4f",
			candidate.Rank, poolSize, candidate.Breakdown.FinalScore),
		ReservedAt: reservation.ReservedAt,
		CreatedAt:  time.Now().UTC(),
	}

	if err := c.persister.Persist(ctx, assignment); err != nil {
		c.release(ctx, reservation)
		metrics.RoutingDecisions.WithLabelValues(models.RoutingStatusFailed).Inc()
		if errors.Is(err, ErrDuplicateAssignment) {
			return result, err
		}
		return result, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	if err := c.store.Commit(ctx, reservation); err != nil {
		// The record is durable and the slot is held; the state flip is
		// bookkeeping that a reconciliation sweep can redo.
		c.logger.Warn("reservation commit failed after persist", map[string]interface{}{
			"leadId":  lead.ID,
			"agentId": candidate.AgentID,
			"error":   err.Error(),
		})
	}

	result.Status = models.RoutingStatusAssigned
	result.AgentID = candidate.AgentID
	result.Rank = candidate.Rank
	breakdown := candidate.Breakdown
	result.Breakdown = &breakdown

	metrics.RoutingDecisions.WithLabelValues(models.RoutingStatusAssigned).Inc()
	c.logger.Info("lead assigned", map[string]interface{}{
		"leadId":     lead.ID,
		"agentId":    candidate.AgentID,
		"rank":       candidate.Rank,
		"finalScore": candidate.Breakdown.FinalScore,
	})
	return result, nil
}

// release is best effort: a failed decrement leaves the counter high
// until reconciliation, which routes conservatively rather than
// overbooking. It runs on a detached context because the request
// context is often already cancelled on this path.
func (c *Coordinator) release(_ context.Context, reservation *models.Reservation) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Release(ctx, reservation); err != nil {
		c.logger.Error("failed to release reservation", map[string]interface{}{
			"leadId":  reservation.LeadID,
			"agentId": reservation.AgentID,
			"error":   err.Error(),
		})
	}
}
