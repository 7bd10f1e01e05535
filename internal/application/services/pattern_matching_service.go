package services

import (
	"context"
	"sort"
	"strings"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
)

// PatternMatch is a denial pattern that a claim partially or fully satisfies
type PatternMatch struct {
	Pattern            *entities.DenialPattern `json:"pattern"`
	MatchScore         float64                 `json:"match_score"`
	DenialReasonCode   string                  `json:"denial_reason_code"`
	ConfidenceScore    float64                 `json:"confidence_score"`
	PatternDescription string                  `json:"pattern_description"`
}

// PatternMatchingService scores claims against learned payer denial patterns
type PatternMatchingService struct {
	claims   repositories.ClaimRepository
	patterns repositories.DenialPatternRepository
}

// NewPatternMatchingService creates a new pattern matching service
func NewPatternMatchingService(claims repositories.ClaimRepository, patterns repositories.DenialPatternRepository) *PatternMatchingService {
	return &PatternMatchingService{
		claims:   claims,
		patterns: patterns,
	}
}

// AnalyzeClaimForPatterns returns the patterns the claim matches, best first.
// Lookup failures yield an empty list and no error.
func (s *PatternMatchingService) AnalyzeClaimForPatterns(ctx context.Context, claimID string) ([]PatternMatch, error) {
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("claim_id", claimID).
			Msg("pattern analysis skipped: claim not resolved")
		return []PatternMatch{}, nil
	}
	return s.MatchClaim(ctx, claim), nil
}

// MatchClaim evaluates an already loaded claim
func (s *PatternMatchingService) MatchClaim(ctx context.Context, claim *entities.Claim) []PatternMatch {
	matches := []PatternMatch{}
	if !claim.HasPayer() {
		return matches
	}

	patterns, err := s.patterns.FindByPayer(ctx, strings.TrimSpace(*claim.PayerID))
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("claim_id", claim.ID).
			Str("payer_id", *claim.PayerID).
			Msg("pattern analysis skipped: pattern lookup failed")
		return matches
	}

	for _, p := range patterns {
		score := MatchScore(p.Conditions, claim)
		if score <= 0 {
			continue
		}
		matches = append(matches, PatternMatch{
			Pattern:            p,
			MatchScore:         score,
			DenialReasonCode:   p.DenialReasonCode,
			ConfidenceScore:    p.ConfidenceScore,
			PatternDescription: p.Description,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].MatchScore != matches[j].MatchScore {
			return matches[i].MatchScore > matches[j].MatchScore
		}
		return matches[i].ConfidenceScore > matches[j].ConfidenceScore
	})
	return matches
}

// MatchScore is the fraction of the defined predicates the claim satisfies.
// Conditions with no predicates score 0.
func MatchScore(c entities.PatternConditions, claim *entities.Claim) float64 {
	var defined, matched int
	check := func(ok bool) {
		defined++
		if ok {
			matched++
		}
	}

	diagnoses := claimDiagnoses(claim)

	if len(c.ProcedureCodes) > 0 {
		check(anyIn(entities.NormalizeCodes(claim.ProcedureCodes()), c.ProcedureCodes))
	}
	if len(c.DiagnosisCodes) > 0 {
		check(anyIn(diagnoses, c.DiagnosisCodes))
	}
	if len(c.DiagnosisPrefixes) > 0 {
		check(anyHasPrefix(diagnoses, c.DiagnosisPrefixes))
	}
	if len(c.FacilityTypes) > 0 {
		check(claim.FacilityType != nil && anyIn([]string{entities.NormalizeCode(*claim.FacilityType)}, c.FacilityTypes))
	}
	if len(c.FrequencyTypes) > 0 {
		check(claim.FrequencyType != nil && anyIn([]string{entities.NormalizeCode(*claim.FrequencyType)}, c.FrequencyTypes))
	}
	if c.MinChargeAmount != nil {
		check(claim.ChargeAmount >= *c.MinChargeAmount)
	}
	if c.MaxChargeAmount != nil {
		check(claim.ChargeAmount <= *c.MaxChargeAmount)
	}
	if c.MissingPrincipalDiagnosis != nil {
		check(!claim.HasPrincipalDiagnosis() == *c.MissingPrincipalDiagnosis)
	}
	if c.IncompleteClaim != nil {
		check(!claim.IsComplete == *c.IncompleteClaim)
	}
	if c.MinLineCount != nil {
		check(len(claim.Lines) >= *c.MinLineCount)
	}

	if defined == 0 {
		return 0
	}
	return float64(matched) / float64(defined)
}

// claimDiagnoses returns the normalised diagnosis codes including the principal one
func claimDiagnoses(claim *entities.Claim) []string {
	codes := entities.NormalizeCodes(claim.DiagnosisCodes)
	if claim.HasPrincipalDiagnosis() {
		codes = append(codes, entities.NormalizeCode(*claim.PrincipalDiagnosis))
	}
	return codes
}

func anyIn(values, set []string) bool {
	for _, v := range values {
		for _, s := range set {
			if v == s {
				return true
			}
		}
	}
	return false
}

func anyHasPrefix(values, prefixes []string) bool {
	for _, v := range values {
		for _, p := range prefixes {
			if strings.HasPrefix(v, p) {
				return true
			}
		}
	}
	return false
}
