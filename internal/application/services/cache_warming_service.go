package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

// CacheWarmingService preloads payer rules and stored risk scores
type CacheWarmingService struct {
	payers  repositories.PayerRepository
	scoring *RiskScoringService
}

// NewCacheWarmingService creates a new cache warming service. payers should be
// the cached payer reader so lookups populate the cache.
func NewCacheWarmingService(payers repositories.PayerRepository, scoring *RiskScoringService) *CacheWarmingService {
	return &CacheWarmingService{
		payers:  payers,
		scoring: scoring,
	}
}

// WarmStats counts the outcome of a warming pass
type WarmStats struct {
	Payers     int
	RiskScores int
	Skipped    int
}

// WarmCache loads the given payers and the stored scores of the given claims.
// Missing entries are skipped; other failures are logged and counted.
func (s *CacheWarmingService) WarmCache(ctx context.Context, payerIDs, claimIDs []string) WarmStats {
	logger := observability.LoggerFromContext(ctx)
	var stats WarmStats

	for _, id := range payerIDs {
		if _, err := s.payers.GetByID(ctx, id); err != nil {
			stats.Skipped++
			if !apperrors.IsNotFound(err) {
				logger.Warn().Err(err).Str("payer_id", id).Msg("failed to warm payer")
			}
			continue
		}
		stats.Payers++
	}

	if s.scoring != nil {
		for _, id := range claimIDs {
			if _, err := s.scoring.GetCachedRiskScore(ctx, id); err != nil {
				stats.Skipped++
				if !apperrors.IsNotFound(err) {
					logger.Warn().Err(err).Str("claim_id", id).Msg("failed to warm risk score")
				}
				continue
			}
			stats.RiskScores++
		}
	}

	logger.Info().
		Int("payers", stats.Payers).
		Int("risk_scores", stats.RiskScores).
		Int("skipped", stats.Skipped).
		Msg("cache warming completed")
	return stats
}

// StartPeriodicWarming warms immediately and then on every interval until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration, payerIDs, claimIDs []string) error {
	if interval <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("invalid warming interval %s", interval))
	}
	s.WarmCache(ctx, payerIDs, claimIDs)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				observability.GetLogger().Info().Msg("stopping cache warming")
				return
			case <-ticker.C:
				s.WarmCache(ctx, payerIDs, claimIDs)
			}
		}
	}()
	return nil
}
