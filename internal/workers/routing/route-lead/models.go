// internal/workers/routing/route-lead/models.go
package routelead

import "lead-routing-workers/internal/models"

type Input struct {
	Lead   models.Lead    `json:"lead"`
	Agents []models.Agent `json:"agents"`
}

// Output carries the routing outcome back into the process. Both
// assigned and exhausted complete the job: an empty or full pool is a
// business answer the process reacts to, not an infrastructure fault.
type Output struct {
	RoutingStatus    string                 `json:"routingStatus"`
	AssignedAgentID  string                 `json:"assignedAgentId,omitempty"`
	AssignmentRank   int                    `json:"assignmentRank,omitempty"`
	ScoreBreakdown   *models.ScoreBreakdown `json:"scoreBreakdown,omitempty"`
	RankedCandidates []models.RankedAgent   `json:"rankedCandidates"`
	SkippedAgents    []models.SkippedAgent  `json:"skippedAgents,omitempty"`
}
