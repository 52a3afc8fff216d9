// internal/workers/routing/validate-lead/models.go
package validatelead

import "lead-routing-workers/internal/models"

type Input struct {
	Lead models.Lead `json:"lead"`
}

type Output struct {
	LeadValid bool        `json:"leadValid"`
	Lead      models.Lead `json:"lead"`
}

// Insurance lines the scoring model has weights tuned for. Leads with
// other values still route, specialization matching is plain string
// membership, but they are worth a warning in the logs.
var knownInsuranceTypes = map[string]bool{
	models.InsuranceTypeAuto:     true,
	models.InsuranceTypeHome:     true,
	models.InsuranceTypeLife:     true,
	models.InsuranceTypeHealth:   true,
	models.InsuranceTypeBusiness: true,
}
