// internal/routing/features.go
package routing

import (
	"fmt"
	"strings"

	"lead-routing-workers/internal/models"
)

// Geographic proximity tiers.
const (
	geoSameCity    = 1.0
	geoSameState   = 0.6
	geoSameCountry = 0.2
	geoNoMatch     = 0.0
)

// Features holds the normalized inputs the scorer consumes for one
// lead/agent pairing.
type Features struct {
	SpecializationMatch        float64
	GeoMatch                   float64
	Headroom                   float64
	IsActive                   bool
	Rating                     float64
	AverageResponseTimeMinutes float64
	ConversionRate             float64
}

// ValidateLead checks the structural fields routing depends on. A
// failure here rejects the whole request.
func ValidateLead(lead models.Lead) error {
	if strings.TrimSpace(lead.ID) == "" {
		return fmt.Errorf("%w: missing lead id", ErrInvalidLead)
	}
	return nil
}

// ValidateAgent checks one agent snapshot. A failure excludes only that
// agent from ranking.
func ValidateAgent(agent models.Agent) error {
	if strings.TrimSpace(agent.ID) == "" {
		return fmt.Errorf("missing agent id")
	}
	if agent.MaxLeadCapacity < 0 {
		return fmt.Errorf("negative maxLeadCapacity %d", agent.MaxLeadCapacity)
	}
	if agent.CurrentLeadCount < 0 {
		return fmt.Errorf("negative currentLeadCount %d", agent.CurrentLeadCount)
	}
	if agent.Rating < 0 || agent.Rating > 5 {
		return fmt.Errorf("rating %.2f outside [0, 5]", agent.Rating)
	}
	if agent.ConversionRate < 0 || agent.ConversionRate > 1 {
		return fmt.Errorf("conversionRate %.2f outside [0, 1]", agent.ConversionRate)
	}
	if agent.AverageResponseTimeMinutes < 0 {
		return fmt.Errorf("negative averageResponseTimeMinutes %.2f", agent.AverageResponseTimeMinutes)
	}
	return nil
}

// ExtractFeatures computes the scoring inputs for a validated agent.
func ExtractFeatures(lead models.Lead, agent models.Agent) Features {
	return Features{
		SpecializationMatch:        specializationMatch(lead.InsuranceType, agent.Specializations),
		GeoMatch:                   geoMatch(lead.Location, agent.Location),
		Headroom:                   headroom(agent.MaxLeadCapacity, agent.CurrentLeadCount),
		IsActive:                   agent.IsActive,
		Rating:                     agent.Rating,
		AverageResponseTimeMinutes: agent.AverageResponseTimeMinutes,
		ConversionRate:             agent.ConversionRate,
	}
}

// specializationMatch is binary: a lead without an insurance type is
// neutral and matches every agent.
func specializationMatch(insuranceType string, specializations []string) float64 {
	if strings.TrimSpace(insuranceType) == "" {
		return 1.0
	}
	for _, s := range specializations {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(insuranceType)) {
			return 1.0
		}
	}
	return 0.0
}

// geoMatch walks the proximity ladder from most to least specific.
// Missing fields never match, so a lead without a location scores 0
// against every agent.
func geoMatch(lead, agent models.Location) float64 {
	if fieldEqual(lead.State, agent.State) {
		if fieldEqual(lead.City, agent.City) {
			return geoSameCity
		}
		return geoSameState
	}
	if fieldEqual(lead.Country, agent.Country) {
		return geoSameCountry
	}
	return geoNoMatch
}

func fieldEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// headroom is the fraction of remaining capacity. Zero-capacity agents
// have no headroom regardless of their current count.
func headroom(maxCapacity, currentCount int) float64 {
	if maxCapacity <= 0 {
		return 0.0
	}
	remaining := maxCapacity - currentCount
	if remaining < 0 {
		remaining = 0
	}
	h := float64(remaining) / float64(maxCapacity)
	if h > 1.0 {
		return 1.0
	}
	return h
}
