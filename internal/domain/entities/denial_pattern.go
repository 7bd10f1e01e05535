package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// DenialPattern is a payer-scoped predicate learned from historical denials
type DenialPattern struct {
	ID               string            `json:"id" db:"id"`
	PayerID          string            `json:"payer_id" db:"payer_id"`
	PatternType      string            `json:"pattern_type" db:"pattern_type"`
	DenialReasonCode string            `json:"denial_reason_code" db:"denial_reason_code"`
	Description      string            `json:"description" db:"description"`
	OccurrenceCount  int               `json:"occurrence_count" db:"occurrence_count"`
	Frequency        float64           `json:"frequency" db:"frequency"`
	ConfidenceScore  float64           `json:"confidence_score" db:"confidence_score"`
	Conditions       PatternConditions `json:"conditions" db:"conditions"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// PatternConditions is the predicate set of a denial pattern. Every populated
// field is one predicate; unknown keys in the stored document are ignored.
type PatternConditions struct {
	ProcedureCodes            []string `json:"procedure_codes,omitempty"`
	DiagnosisCodes            []string `json:"diagnosis_codes,omitempty"`
	DiagnosisPrefixes         []string `json:"diagnosis_prefixes,omitempty"`
	FacilityTypes             []string `json:"facility_types,omitempty"`
	FrequencyTypes            []string `json:"frequency_types,omitempty"`
	MinChargeAmount           *float64 `json:"min_charge_amount,omitempty"`
	MaxChargeAmount           *float64 `json:"max_charge_amount,omitempty"`
	MissingPrincipalDiagnosis *bool    `json:"missing_principal_diagnosis,omitempty"`
	IncompleteClaim           *bool    `json:"incomplete_claim,omitempty"`
	MinLineCount              *int     `json:"min_line_count,omitempty"`
}

// ParsePatternConditions decodes and validates a stored condition document
func ParsePatternConditions(raw []byte) (PatternConditions, error) {
	var c PatternConditions
	if len(raw) == 0 || string(raw) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return PatternConditions{}, err
	}
	c.ProcedureCodes = NormalizeCodes(c.ProcedureCodes)
	c.DiagnosisCodes = NormalizeCodes(c.DiagnosisCodes)
	c.DiagnosisPrefixes = NormalizeCodes(c.DiagnosisPrefixes)
	c.FacilityTypes = NormalizeCodes(c.FacilityTypes)
	c.FrequencyTypes = NormalizeCodes(c.FrequencyTypes)
	return c, c.Validate()
}

// Validate rejects contradictory predicates
func (c PatternConditions) Validate() error {
	if c.MinChargeAmount != nil && c.MaxChargeAmount != nil && *c.MinChargeAmount > *c.MaxChargeAmount {
		return fmt.Errorf("min_charge_amount %.2f exceeds max_charge_amount %.2f", *c.MinChargeAmount, *c.MaxChargeAmount)
	}
	if c.MinLineCount != nil && *c.MinLineCount < 0 {
		return fmt.Errorf("min_line_count must not be negative")
	}
	return nil
}

// IsEmpty reports whether no predicate is populated
func (c PatternConditions) IsEmpty() bool {
	return len(c.ProcedureCodes) == 0 &&
		len(c.DiagnosisCodes) == 0 &&
		len(c.DiagnosisPrefixes) == 0 &&
		len(c.FacilityTypes) == 0 &&
		len(c.FrequencyTypes) == 0 &&
		c.MinChargeAmount == nil &&
		c.MaxChargeAmount == nil &&
		c.MissingPrincipalDiagnosis == nil &&
		c.IncompleteClaim == nil &&
		c.MinLineCount == nil
}
