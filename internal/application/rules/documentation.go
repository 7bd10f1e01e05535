package rules

import (
	"context"
	"fmt"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

const maxParsingWarnings = 5

// DocumentationEngine checks claim completeness
type DocumentationEngine struct{}

// NewDocumentationEngine creates a documentation engine
func NewDocumentationEngine() *DocumentationEngine {
	return &DocumentationEngine{}
}

// Name returns the engine name
func (e *DocumentationEngine) Name() string { return FactorDocumentation }

// Evaluate scores documentation risk
func (e *DocumentationEngine) Evaluate(_ context.Context, claim *entities.Claim) Result {
	var r Result

	if !claim.IsComplete {
		r.add(30, FactorDocumentation, entities.SeverityHigh, "Claim is flagged incomplete")
	}
	if n := len(claim.ParsingWarnings); n > maxParsingWarnings {
		r.add(25, FactorDocumentation, entities.SeverityMedium,
			fmt.Sprintf("Claim produced %d parsing warnings", n))
	}
	if !nonBlank(claim.AttendingProviderID) {
		r.add(20, FactorDocumentation, entities.SeverityMedium, "Attending provider is missing")
	}
	if claim.ServiceDate == nil && claim.StatementDate == nil {
		r.add(15, FactorDocumentation, entities.SeverityHigh, "Service and statement dates are both missing")
	}
	if !nonBlank(claim.AssignmentCode) {
		r.add(10, FactorDocumentation, entities.SeverityLow, "Assignment code is missing")
	}

	return r.clamp()
}

func nonBlank(s *string) bool {
	return s != nil && entities.NormalizeCode(*s) != ""
}
