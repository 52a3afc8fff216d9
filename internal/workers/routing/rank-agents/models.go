// internal/workers/routing/rank-agents/models.go
package rankagents

import "lead-routing-workers/internal/models"

type Input struct {
	Lead   models.Lead    `json:"lead"`
	Agents []models.Agent `json:"agents"`
}

type Output struct {
	RankedAgents  []models.RankedAgent  `json:"rankedAgents"`
	SkippedAgents []models.SkippedAgent `json:"skippedAgents,omitempty"`
	PoolSize      int                   `json:"poolSize"`
}
