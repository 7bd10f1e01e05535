package entities

import (
	"strings"
	"time"
)

// ClaimStatus represents the lifecycle status of a submitted claim
type ClaimStatus string

const (
	ClaimStatusSubmitted ClaimStatus = "submitted"
	ClaimStatusLinked    ClaimStatus = "linked"
	ClaimStatusPaid      ClaimStatus = "paid"
	ClaimStatusDenied    ClaimStatus = "denied"
)

// Claim is a submitted healthcare claim as produced by ingestion
type Claim struct {
	ID                  string      `json:"id" db:"id"`
	ControlNumber       string      `json:"control_number" db:"control_number"`
	ChargeAmount        float64     `json:"charge_amount" db:"charge_amount"`
	DiagnosisCodes      []string    `json:"diagnosis_codes" db:"diagnosis_codes"`
	PrincipalDiagnosis  *string     `json:"principal_diagnosis,omitempty" db:"principal_diagnosis"`
	ProviderID          string      `json:"provider_id" db:"provider_id"`
	AttendingProviderID *string     `json:"attending_provider_id,omitempty" db:"attending_provider_id"`
	PayerID             *string     `json:"payer_id,omitempty" db:"payer_id"`
	IsComplete          bool        `json:"is_complete" db:"is_complete"`
	ParsingWarnings     []string    `json:"parsing_warnings" db:"parsing_warnings"`
	ServiceDate         *time.Time  `json:"service_date,omitempty" db:"service_date"`
	StatementDate       *time.Time  `json:"statement_date,omitempty" db:"statement_date"`
	AssignmentCode      *string     `json:"assignment_code,omitempty" db:"assignment_code"`
	FrequencyType       *string     `json:"frequency_type,omitempty" db:"frequency_type"`
	FacilityType        *string     `json:"facility_type,omitempty" db:"facility_type"`
	Status              ClaimStatus `json:"status" db:"status"`
	Lines               []ClaimLine `json:"lines"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// ClaimLine is a single service line of a claim
type ClaimLine struct {
	LineNumber    int        `json:"line_number" db:"line_number"`
	ProcedureCode string     `json:"procedure_code" db:"procedure_code"`
	ChargeAmount  float64    `json:"charge_amount" db:"charge_amount"`
	ServiceDate   *time.Time `json:"service_date,omitempty" db:"service_date"`
}

// HasPrincipalDiagnosis reports whether a non-blank principal diagnosis is present
func (c *Claim) HasPrincipalDiagnosis() bool {
	return nonBlank(c.PrincipalDiagnosis)
}

// HasPayer reports whether the claim references a payer
func (c *Claim) HasPayer() bool {
	return nonBlank(c.PayerID)
}

// ProcedureCodes returns the non-empty procedure codes of the claim lines in order
func (c *Claim) ProcedureCodes() []string {
	codes := make([]string, 0, len(c.Lines))
	for _, line := range c.Lines {
		if line.ProcedureCode != "" {
			codes = append(codes, line.ProcedureCode)
		}
	}
	return codes
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
