package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/zatekoja/claimrecon/internal/application/rules"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
	"github.com/zatekoja/claimrecon/pkg/config"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RiskWeights are the component weights of the overall score
type RiskWeights = config.WeightsConfig

// DefaultRiskWeights returns payer .20, coding .25, documentation .20, historical .15, pattern .20
func DefaultRiskWeights() RiskWeights {
	return RiskWeights{Payer: 0.20, Coding: 0.25, Documentation: 0.20, Historical: 0.15, Pattern: 0.20}
}

const (
	weightSumTolerance    = 0.01
	maxPatternFactors     = 3
	highPatternMatchScore = 0.7
	defaultScoreTTL       = 3600
	factorPattern         = "pattern"
)

// Recommendations emitted by the aggregator
const (
	RecommendationBlocking      = "Resolve critical issues before submission: the claim is likely to be denied as filed"
	RecommendationCoding        = "Review procedure and diagnosis coding"
	RecommendationDocumentation = "Review documentation completeness"
	RecommendationPayer         = "Verify payer requirements and eligibility"
)

// RiskLevelFor maps an overall score onto a risk level
func RiskLevelFor(score float64) entities.RiskLevel {
	switch {
	case score >= 75:
		return entities.RiskLevelCritical
	case score >= 50:
		return entities.RiskLevelHigh
	case score >= 25:
		return entities.RiskLevelMedium
	}
	return entities.RiskLevelLow
}

// ScoringOptions configures the RiskScoringService
type ScoringOptions struct {
	Weights          RiskWeights
	ScoreTTL         int
	BatchConcurrency int
	// BatchReader wraps the claim repository for one CalculateRiskScores call
	BatchReader func(repositories.ClaimRepository) repositories.ClaimRepository
}

// BatchResult holds the outcome of CalculateRiskScores
type BatchResult struct {
	Scores map[string]*entities.RiskScore
	Errors map[string]error
}

// RiskScoringService combines rule engines, the historical predictor and
// denial patterns into one score per claim
type RiskScoringService struct {
	claims        repositories.ClaimRepository
	scores        repositories.RiskScoreRepository
	coding        rules.Engine
	documentation rules.Engine
	payer         rules.Engine
	patterns      *PatternMatchingService
	predictor     providers.HistoricalRiskPredictor
	cache         providers.CacheProvider
	publisher     *EventPublisher
	metrics       *observability.Metrics
	opts          ScoringOptions
}

// NewRiskScoringService creates a new risk scoring service. Negative or NaN
// weights are rejected; a set not summing to 1 only logs a warning.
func NewRiskScoringService(
	claims repositories.ClaimRepository,
	scores repositories.RiskScoreRepository,
	payers repositories.PayerRepository,
	patterns *PatternMatchingService,
	predictor providers.HistoricalRiskPredictor,
	cache providers.CacheProvider,
	publisher *EventPublisher,
	metrics *observability.Metrics,
	opts ScoringOptions,
) (*RiskScoringService, error) {
	if opts.Weights == (RiskWeights{}) {
		opts.Weights = DefaultRiskWeights()
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}
	if sum := opts.Weights.Sum(); math.Abs(sum-1.0) > weightSumTolerance {
		observability.GetLogger().Warn().Float64("weight_sum", sum).Msg("risk weights do not sum to 1.0")
	}
	if opts.ScoreTTL <= 0 {
		opts.ScoreTTL = defaultScoreTTL
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 8
	}

	return &RiskScoringService{
		claims:        claims,
		scores:        scores,
		coding:        rules.NewCodingEngine(),
		documentation: rules.NewDocumentationEngine(),
		payer:         rules.NewPayerEngine(payers),
		patterns:      patterns,
		predictor:     predictor,
		cache:         cache,
		publisher:     publisher,
		metrics:       metrics,
		opts:          opts,
	}, nil
}

// CalculateRiskScore scores a claim and stores, caches and publishes the result
func (s *RiskScoringService) CalculateRiskScore(ctx context.Context, claimID string) (*entities.RiskScore, error) {
	return s.calculate(ctx, s.claims, claimID)
}

// CalculateRiskScores scores claims concurrently. Per-claim failures are
// reported in the result; only cancellation fails the batch.
func (s *RiskScoringService) CalculateRiskScores(ctx context.Context, claimIDs []string) (*BatchResult, error) {
	result := &BatchResult{
		Scores: make(map[string]*entities.RiskScore, len(claimIDs)),
		Errors: make(map[string]error),
	}

	reader := s.claims
	if s.opts.BatchReader != nil {
		reader = s.opts.BatchReader(s.claims)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)

	seen := make(map[string]struct{}, len(claimIDs))
	for _, id := range claimIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := s.calculate(gctx, reader, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[id] = err
				return nil
			}
			result.Scores[id] = score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, nil
}

// GetCachedRiskScore returns the cached score, falling back to the stored one
func (s *RiskScoringService) GetCachedRiskScore(ctx context.Context, claimID string) (*entities.RiskScore, error) {
	key := RiskScoreCacheKey(claimID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var score entities.RiskScore
			if err := json.Unmarshal(data, &score); err == nil {
				observability.RecordCacheHit(ctx, s.metrics, "risk_score")
				return &score, nil
			}
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("claim_id", claimID).Msg("failed to unmarshal cached risk score")
		}
		observability.RecordCacheMiss(ctx, s.metrics, "risk_score")
	}

	score, err := s.scores.GetLatestByClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	s.cacheScore(ctx, score)
	return score, nil
}

func (s *RiskScoringService) calculate(ctx context.Context, claims repositories.ClaimRepository, claimID string) (*entities.RiskScore, error) {
	ctx, span := observability.StartSpan(ctx, "RiskScoringService.CalculateRiskScore",
		attribute.String("claim.id", claimID))
	defer span.End()
	started := time.Now()

	claim, err := claims.GetByID(ctx, claimID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	score := s.evaluate(ctx, claim)

	if err := s.upsert(ctx, score); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	s.cacheScore(ctx, score)
	s.publisher.Publish(ctx, entities.NewRiskScoreEvent(score))

	span.SetAttributes(
		attribute.Float64("risk.overall", score.OverallScore),
		attribute.String("risk.level", string(score.RiskLevel)),
	)
	observability.RecordRiskScore(ctx, s.metrics, string(score.RiskLevel), time.Since(started))
	return score, nil
}

// evaluate computes the components, the weighted total and the recommendations
func (s *RiskScoringService) evaluate(ctx context.Context, claim *entities.Claim) *entities.RiskScore {
	coding := s.coding.Evaluate(ctx, claim)
	documentation := s.documentation.Evaluate(ctx, claim)
	payer := s.payer.Evaluate(ctx, claim)
	historical := s.historicalRisk(ctx, claim)
	patternRisk, patternFactors := s.patternRisk(ctx, claim)

	factors := make([]entities.RiskFactor, 0,
		len(coding.Factors)+len(documentation.Factors)+len(payer.Factors)+len(patternFactors))
	factors = append(factors, coding.Factors...)
	factors = append(factors, documentation.Factors...)
	factors = append(factors, payer.Factors...)
	factors = append(factors, patternFactors...)

	w := s.opts.Weights
	overall := clampScore(w.Payer*payer.Score +
		w.Coding*coding.Score +
		w.Documentation*documentation.Score +
		w.Historical*historical +
		w.Pattern*patternRisk)

	score := &entities.RiskScore{
		ClaimID:           claim.ID,
		OverallScore:      overall,
		RiskLevel:         RiskLevelFor(overall),
		CodingRisk:        coding.Score,
		DocumentationRisk: documentation.Score,
		PayerRisk:         payer.Score,
		HistoricalRisk:    historical,
		PatternRisk:       patternRisk,
		RiskFactors:       factors,
		CalculatedAt:      time.Now().UTC(),
	}
	score.Recommendations = recommendations(score)
	return score
}

func (s *RiskScoringService) historicalRisk(ctx context.Context, claim *entities.Claim) float64 {
	if s.predictor == nil {
		return 0
	}
	value, err := s.predictor.Predict(ctx, claim)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("claim_id", claim.ID).
			Msg("historical predictor unavailable, using neutral risk")
		observability.RecordDegraded(ctx, s.metrics, "historical_predictor")
		return 0
	}
	return clampScore(value)
}

// patternRisk is the best match score scaled by its confidence
func (s *RiskScoringService) patternRisk(ctx context.Context, claim *entities.Claim) (float64, []entities.RiskFactor) {
	if s.patterns == nil {
		return 0, nil
	}
	matches := s.patterns.MatchClaim(ctx, claim)
	if len(matches) == 0 {
		return 0, nil
	}

	top := matches[0]
	risk := clampScore(top.MatchScore * 100 * top.ConfidenceScore)

	factors := make([]entities.RiskFactor, 0, maxPatternFactors)
	for i, m := range matches {
		if i == maxPatternFactors {
			break
		}
		severity := entities.SeverityMedium
		if m.MatchScore > highPatternMatchScore {
			severity = entities.SeverityHigh
		}
		factors = append(factors, entities.RiskFactor{
			Type:     factorPattern,
			Severity: severity,
			Message: fmt.Sprintf("Matches denial pattern %s (%.0f%% match): %s",
				m.DenialReasonCode, m.MatchScore*100, m.PatternDescription),
		})
	}
	return risk, factors
}

func recommendations(score *entities.RiskScore) []string {
	recs := []string{}
	if score.HasCriticalFactor() {
		recs = append(recs, RecommendationBlocking)
	}
	if score.CodingRisk > 50 {
		recs = append(recs, RecommendationCoding)
	}
	if score.DocumentationRisk > 50 {
		recs = append(recs, RecommendationDocumentation)
	}
	if score.PayerRisk > 50 {
		recs = append(recs, RecommendationPayer)
	}
	return recs
}

// upsert overwrites the claim's stored score or creates the first one
func (s *RiskScoringService) upsert(ctx context.Context, score *entities.RiskScore) error {
	existing, err := s.scores.GetLatestByClaim(ctx, score.ClaimID)
	switch {
	case err == nil:
		score.ID = existing.ID
		if err := s.scores.Update(ctx, score); err != nil {
			return fmt.Errorf("failed to update risk score: %w", err)
		}
		return nil
	case apperrors.IsNotFound(err):
		if err := s.scores.Create(ctx, score); err != nil {
			return fmt.Errorf("failed to create risk score: %w", err)
		}
		return nil
	}
	return fmt.Errorf("failed to load existing risk score: %w", err)
}

func (s *RiskScoringService) cacheScore(ctx context.Context, score *entities.RiskScore) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(score)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, RiskScoreCacheKey(score.ClaimID), data, s.opts.ScoreTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("claim_id", score.ClaimID).Msg("failed to cache risk score")
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > rules.MaxScore {
		return rules.MaxScore
	}
	return v
}
