package rules

import (
	"context"
	"fmt"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
)

const (
	missingPayerScore    = 30
	unresolvedPayerScore = 20
)

// PayerEngine applies payer-specific submission rules
type PayerEngine struct {
	payers repositories.PayerRepository
}

// NewPayerEngine creates a payer engine. payers is expected to be a cached reader.
func NewPayerEngine(payers repositories.PayerRepository) *PayerEngine {
	return &PayerEngine{payers: payers}
}

// Name returns the engine name
func (e *PayerEngine) Name() string { return FactorPayer }

// Evaluate scores payer risk
func (e *PayerEngine) Evaluate(ctx context.Context, claim *entities.Claim) Result {
	var r Result

	if !claim.HasPayer() {
		r.add(missingPayerScore, FactorPayer, entities.SeverityHigh, "Claim has no payer")
		return r.clamp()
	}

	payer, err := e.payers.GetByID(ctx, *claim.PayerID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("claim_id", claim.ID).
			Str("payer_id", *claim.PayerID).
			Msg("payer could not be resolved")
		r.add(unresolvedPayerScore, FactorPayer, entities.SeverityMedium,
			fmt.Sprintf("Payer %s could not be resolved", *claim.PayerID))
		return r.clamp()
	}

	rulesCfg := payer.RulesConfig
	if nonBlank(claim.FrequencyType) && !rulesCfg.AllowsFrequencyType(*claim.FrequencyType) {
		r.add(25, FactorPayer, entities.SeverityHigh,
			fmt.Sprintf("Frequency type %s is not accepted by %s", entities.NormalizeCode(*claim.FrequencyType), payer.Name))
	}
	if claim.FacilityType != nil && rulesCfg.RestrictsFacilityType(*claim.FacilityType) {
		r.add(30, FactorPayer, entities.SeverityHigh,
			fmt.Sprintf("Facility type %s is restricted by %s", entities.NormalizeCode(*claim.FacilityType), payer.Name))
	}

	return r.clamp()
}
