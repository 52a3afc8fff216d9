// internal/models/lead.go
package models

// Lead lifecycle status values.
const (
	LeadStatusNew         = "new"
	LeadStatusContacted   = "contacted"
	LeadStatusQualified   = "qualified"
	LeadStatusUnqualified = "unqualified"
	LeadStatusConverted   = "converted"
	LeadStatusLost        = "lost"
)

// Insurance lines the routing process usually sees. Matching is plain
// string membership, so values outside this set still route.
const (
	InsuranceTypeAuto     = "auto"
	InsuranceTypeHome     = "home"
	InsuranceTypeLife     = "life"
	InsuranceTypeHealth   = "health"
	InsuranceTypeBusiness = "business"
)

type Location struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

type Lead struct {
	ID            string   `json:"id"`
	InsuranceType string   `json:"insuranceType,omitempty"`
	Location      Location `json:"location"`
	Status        string   `json:"status,omitempty"`
	QualityScore  float64  `json:"qualityScore,omitempty"`
	Intent        string   `json:"intent,omitempty"`
	Urgency       string   `json:"urgency,omitempty"`
}

// QualificationResult is the payload produced by the upstream lead
// qualification step and consumed by the routing process.
type QualificationResult struct {
	LeadID        string  `json:"leadId"`
	InsuranceType string  `json:"insuranceType,omitempty"`
	QualityScore  float64 `json:"qualityScore"`
	Intent        string  `json:"intent,omitempty"`
	Urgency       string  `json:"urgency,omitempty"`
}
