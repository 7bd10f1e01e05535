// Package rules holds the stateless claim rule engines used by risk scoring.
package rules

import (
	"context"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// MaxScore is the upper bound of every engine score
const MaxScore = 100.0

// Factor types reported by the engines
const (
	FactorCoding        = "coding"
	FactorDocumentation = "documentation"
	FactorPayer         = "payer"
)

// Result is one engine's risk contribution
type Result struct {
	Score   float64
	Factors []entities.RiskFactor
}

// Engine evaluates a claim snapshot. Evaluate never fails; lookup problems
// degrade to a fixed score.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, claim *entities.Claim) Result
}

func (r *Result) add(points float64, factorType string, severity entities.Severity, message string) {
	r.Score += points
	r.Factors = append(r.Factors, entities.RiskFactor{
		Type:     factorType,
		Severity: severity,
		Message:  message,
	})
}

func (r *Result) clamp() Result {
	if r.Score > MaxScore {
		r.Score = MaxScore
	}
	if r.Factors == nil {
		r.Factors = []entities.RiskFactor{}
	}
	return *r
}
