package entities

import "time"

// RiskLevel classifies an overall risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Severity of a single risk factor
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from low (0) to critical (3)
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

// RiskFactor explains one contribution to a risk score
type RiskFactor struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// RiskScore is the denial risk assessment of a claim. One per claim; a
// recalculation overwrites the previous values.
type RiskScore struct {
	ID                string       `json:"id" db:"id"`
	ClaimID           string       `json:"claim_id" db:"claim_id"`
	OverallScore      float64      `json:"overall_score" db:"overall_score"`
	RiskLevel         RiskLevel    `json:"risk_level" db:"risk_level"`
	CodingRisk        float64      `json:"coding_risk" db:"coding_risk"`
	DocumentationRisk float64      `json:"documentation_risk" db:"documentation_risk"`
	PayerRisk         float64      `json:"payer_risk" db:"payer_risk"`
	HistoricalRisk    float64      `json:"historical_risk" db:"historical_risk"`
	PatternRisk       float64      `json:"pattern_risk" db:"pattern_risk"`
	RiskFactors       []RiskFactor `json:"risk_factors" db:"risk_factors"`
	Recommendations   []string     `json:"recommendations" db:"recommendations"`
	CalculatedAt      time.Time    `json:"calculated_at" db:"calculated_at"`
}

// HasCriticalFactor reports whether any factor is of critical severity
func (r *RiskScore) HasCriticalFactor() bool {
	for _, f := range r.RiskFactors {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
