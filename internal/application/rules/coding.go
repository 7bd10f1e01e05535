package rules

import (
	"context"
	"fmt"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

const maxDiagnosisCodes = 12

// CodingEngine checks diagnosis and procedure coding
type CodingEngine struct{}

// NewCodingEngine creates a coding engine
func NewCodingEngine() *CodingEngine {
	return &CodingEngine{}
}

// Name returns the engine name
func (e *CodingEngine) Name() string { return FactorCoding }

// Evaluate scores coding risk
func (e *CodingEngine) Evaluate(_ context.Context, claim *entities.Claim) Result {
	var r Result

	if !claim.HasPrincipalDiagnosis() {
		r.add(40, FactorCoding, entities.SeverityHigh, "Principal diagnosis is missing")
	}
	if len(claim.DiagnosisCodes) == 0 {
		r.add(50, FactorCoding, entities.SeverityCritical, "No diagnosis codes on claim")
	} else if len(claim.DiagnosisCodes) > maxDiagnosisCodes {
		r.add(20, FactorCoding, entities.SeverityMedium,
			fmt.Sprintf("Claim carries %d diagnosis codes (more than %d)", len(claim.DiagnosisCodes), maxDiagnosisCodes))
	}
	for _, line := range claim.Lines {
		if entities.NormalizeCode(line.ProcedureCode) == "" {
			r.add(15, FactorCoding, entities.SeverityHigh,
				fmt.Sprintf("Line %d is missing a procedure code", line.LineNumber))
		}
	}

	return r.clamp()
}
