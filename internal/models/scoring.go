// internal/models/scoring.go
package models

// ScoreBreakdown carries every factor that contributed to an agent's
// final score. The shape is fixed so persisted audit records stay
// comparable when scoring weights change.
type ScoreBreakdown struct {
	SpecializationScore float64 `json:"specializationScore"`
	GeoScore            float64 `json:"geoScore"`
	AvailabilityScore   float64 `json:"availabilityScore"`
	RatingScore         float64 `json:"ratingScore"`
	ResponseTimeScore   float64 `json:"responseTimeScore"`
	ConversionScore     float64 `json:"conversionScore"`
	FinalScore          float64 `json:"finalScore"`
}

type RankedAgent struct {
	AgentID   string         `json:"agentId"`
	Rank      int            `json:"rank"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// SkippedAgent records an agent excluded from ranking because its
// snapshot failed validation.
type SkippedAgent struct {
	AgentID string `json:"agentId"`
	Reason  string `json:"reason"`
}
