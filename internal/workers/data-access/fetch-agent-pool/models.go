// internal/workers/data-access/fetch-agent-pool/models.go
package fetchagentpool

import "lead-routing-workers/internal/models"

type Input struct {
	Lead models.Lead `json:"lead"`

	// PoolSize overrides the configured pool size when positive.
	PoolSize int `json:"poolSize,omitempty"`

	// IncludeInactive widens the query past active agents. Inactive
	// agents score zero on availability, so this only matters for
	// ranking previews and audits.
	IncludeInactive bool `json:"includeInactive,omitempty"`
}

type Output struct {
	Agents   []models.Agent `json:"agents"`
	PoolSize int            `json:"poolSize"`
}
