// internal/assignments/repository.go
package assignments

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"lead-routing-workers/internal/common/logger"
	"lead-routing-workers/internal/models"
	"lead-routing-workers/internal/routing"
)

// Repository writes assignment decisions to PostgreSQL. It is the
// durable side of the routing protocol: the lead_assignments insert is
// what makes an assignment real, and its duplicate guard is what
// enforces a single committed assignment per lead.
type Repository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "assignments"}),
	}
}

func (r *Repository) Persist(ctx context.Context, assignment *models.Assignment) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM lead_assignments
			WHERE lead_id = $1
		)`, assignment.LeadID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: duplicate check failed: %v", routing.ErrPersistFailed, err)
	}
	if exists {
		return fmt.Errorf("%w: lead %s", routing.ErrDuplicateAssignment, assignment.LeadID)
	}

	breakdownJSON, err := json.Marshal(assignment.Breakdown)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal score breakdown: %v", routing.ErrPersistFailed, err)
	}

	reservedAt := assignment.ReservedAt.UTC().Format(time.RFC3339)
	createdAt := assignment.CreatedAt.UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO lead_assignments (
			id, lead_id, agent_id, rank, score_breakdown,
			assignment_type, reason, reserved_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		assignment.ID,
		assignment.LeadID,
		assignment.AgentID,
		assignment.Rank,
		breakdownJSON,
		assignment.AssignmentType,
		assignment.Reason,
		reservedAt,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert failed: %v", routing.ErrPersistFailed, err)
	}

	// Activity trail entry (non-critical, log error but don't fail)
	detailsJSON, err := json.Marshal(map[string]interface{}{
		"agentId":        assignment.AgentID,
		"rank":           assignment.Rank,
		"finalScore":     assignment.Breakdown.FinalScore,
		"assignmentType": assignment.AssignmentType,
	})
	if err != nil {
		r.logger.Warn("failed to marshal activity details", map[string]interface{}{
			"error": err,
		})
		detailsJSON = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO lead_activities (lead_id, activity_type, description, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		assignment.LeadID,
		"lead_assigned",
		fmt.Sprintf("Lead assigned to agent %s (%s)", assignment.AgentID, assignment.Reason),
		detailsJSON,
		createdAt,
	)
	if err != nil {
		r.logger.Warn("activity insert failed", map[string]interface{}{
			"error":  err,
			"leadId": assignment.LeadID,
		})
	}

	r.logger.Info("assignment record created", map[string]interface{}{
		"assignmentId": assignment.ID,
		"leadId":       assignment.LeadID,
		"agentId":      assignment.AgentID,
		"rank":         assignment.Rank,
	})

	return nil
}

var _ routing.AssignmentPersister = (*Repository)(nil)
