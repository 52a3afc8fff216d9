// internal/models/agent.go
package models

type Agent struct {
	ID                         string   `json:"id"`
	Name                       string   `json:"name,omitempty"`
	Specializations            []string `json:"specializations"`
	Location                   Location `json:"location"`
	Rating                     float64  `json:"rating"`
	IsActive                   bool     `json:"isActive"`
	MaxLeadCapacity            int      `json:"maxLeadCapacity"`
	CurrentLeadCount           int      `json:"currentLeadCount"`
	AverageResponseTimeMinutes float64  `json:"averageResponseTimeMinutes"`
	ConversionRate             float64  `json:"conversionRate"`
}
