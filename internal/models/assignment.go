// internal/models/assignment.go
package models

import "time"

// Reservation states.
const (
	ReservationPending   = "pending"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

// How an assignment decision was made.
const (
	AssignmentTypeAutomatic = "automatic"
	AssignmentTypeManual    = "manual"
	AssignmentTypeBulk      = "bulk"
)

// Routing outcomes.
const (
	RoutingStatusAssigned  = "assigned"
	RoutingStatusExhausted = "exhausted"
	RoutingStatusFailed    = "failed"
)

// Reservation is a capacity slot held for a lead on a single agent.
type Reservation struct {
	LeadID     string    `json:"leadId"`
	AgentID    string    `json:"agentId"`
	ReservedAt time.Time `json:"reservedAt"`
	State      string    `json:"state"`
}

// Assignment is the persisted record of a routing decision.
type Assignment struct {
	ID             string         `json:"id"`
	LeadID         string         `json:"leadId"`
	AgentID        string         `json:"agentId"`
	Rank           int            `json:"rank"`
	Breakdown      ScoreBreakdown `json:"scoreBreakdown"`
	AssignmentType string         `json:"assignmentType"`
	Reason         string         `json:"reason"`
	ReservedAt     time.Time      `json:"reservedAt"`
	CreatedAt      time.Time      `json:"createdAt"`
}
