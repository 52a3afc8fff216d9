// internal/routing/ranker.go
package routing

import (
	"sort"
	"strings"

	"lead-routing-workers/internal/models"
)

type scoredAgent struct {
	agent     models.Agent
	breakdown models.ScoreBreakdown
}

// RankAgents scores every valid agent in the pool and returns them in
// routing order. Agents that fail validation come back in the skipped
// list instead of aborting the request; an invalid lead aborts with
// ErrInvalidLead.
//
// The function is pure: same lead and pool produce the same ranking in
// any input order, including inactive and zero-headroom agents so the
// output stays a complete audit of the pool.
func (s *Scorer) RankAgents(lead models.Lead, pool []models.Agent) ([]models.RankedAgent, []models.SkippedAgent, error) {
	if err := ValidateLead(lead); err != nil {
		return nil, nil, err
	}

	scored := make([]scoredAgent, 0, len(pool))
	var skipped []models.SkippedAgent

	for _, agent := range pool {
		if err := ValidateAgent(agent); err != nil {
			skipped = append(skipped, models.SkippedAgent{
				AgentID: agent.ID,
				Reason:  err.Error(),
			})
			continue
		}
		scored = append(scored, scoredAgent{
			agent:     agent,
			breakdown: s.Score(ExtractFeatures(lead, agent)),
		})
	}

	// Strict total order: score, then rating, then load, then id. The
	// id leg keeps equal agents deterministic regardless of pool order.
	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.breakdown.FinalScore != b.breakdown.FinalScore {
			return a.breakdown.FinalScore > b.breakdown.FinalScore
		}
		if a.agent.Rating != b.agent.Rating {
			return a.agent.Rating > b.agent.Rating
		}
		if a.agent.CurrentLeadCount != b.agent.CurrentLeadCount {
			return a.agent.CurrentLeadCount < b.agent.CurrentLeadCount
		}
		return strings.Compare(a.agent.ID, b.agent.ID) < 0
	})

	ranked := make([]models.RankedAgent, len(scored))
	for i, sa := range scored {
		ranked[i] = models.RankedAgent{
			AgentID:   sa.agent.ID,
			Rank:      i + 1,
			Breakdown: sa.breakdown,
		}
	}

	return ranked, skipped, nil
}
