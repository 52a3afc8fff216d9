// internal/routing/scoring.go
package routing

import (
	"fmt"
	"math"

	"lead-routing-workers/internal/models"
)

// weightSumTolerance absorbs float drift from YAML-sourced weights.
const weightSumTolerance = 1e-9

// Weights are the scoring factor weights. They must sum to 1.0.
type Weights struct {
	Specialization float64
	Geo            float64
	Availability   float64
	Rating         float64
	ResponseTime   float64
	Conversion     float64
}

// DefaultWeights returns the standard production weighting.
func DefaultWeights() Weights {
	return Weights{
		Specialization: 0.30,
		Geo:            0.15,
		Availability:   0.20,
		Rating:         0.15,
		ResponseTime:   0.10,
		Conversion:     0.10,
	}
}

// Validate rejects weight sets that do not form a convex combination.
func (w Weights) Validate() error {
	sum := w.Specialization + w.Geo + w.Availability + w.Rating + w.ResponseTime + w.Conversion
	if math.Abs(sum-1.0) > weightSumTolerance {
		return fmt.Errorf("weights must sum to 1.0, got %.6f", sum)
	}
	for name, v := range map[string]float64{
		"specialization": w.Specialization,
		"geo":            w.Geo,
		"availability":   w.Availability,
		"rating":         w.Rating,
		"responseTime":   w.ResponseTime,
		"conversion":     w.Conversion,
	} {
		if v < 0 {
			return fmt.Errorf("weight %s must not be negative", name)
		}
	}
	return nil
}

// Scorer computes composite agent scores under a fixed weight set.
type Scorer struct {
	weights Weights
}

// NewScorer validates the weights once so scoring never fails mid-batch.
func NewScorer(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

// Score normalizes the extracted features and folds them into a final
// score rounded to 4 decimals.
func (s *Scorer) Score(f Features) models.ScoreBreakdown {
	availability := 0.0
	if f.IsActive {
		availability = f.Headroom
	}

	b := models.ScoreBreakdown{
		SpecializationScore: f.SpecializationMatch,
		GeoScore:            f.GeoMatch,
		AvailabilityScore:   availability,
		RatingScore:         f.Rating / 5.0,
		ResponseTimeScore:   1.0 / (1.0 + f.AverageResponseTimeMinutes/10.0),
		ConversionScore:     f.ConversionRate,
	}

	final := s.weights.Specialization*b.SpecializationScore +
		s.weights.Geo*b.GeoScore +
		s.weights.Availability*b.AvailabilityScore +
		s.weights.Rating*b.RatingScore +
		s.weights.ResponseTime*b.ResponseTimeScore +
		s.weights.Conversion*b.ConversionScore

	b.FinalScore = round4(final)
	return b
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
