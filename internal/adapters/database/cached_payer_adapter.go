package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
)

// CachedPayerAdapter wraps a PayerRepository with read-through caching
type CachedPayerAdapter struct {
	adapter repositories.PayerRepository
	cache   providers.CacheProvider
	ttl     int
	metrics *observability.Metrics
}

// NewCachedPayerAdapter creates a new cached payer adapter. ttlSeconds <= 0 uses 900.
func NewCachedPayerAdapter(adapter repositories.PayerRepository, cache providers.CacheProvider, ttlSeconds int, metrics *observability.Metrics) repositories.PayerRepository {
	if ttlSeconds <= 0 {
		ttlSeconds = 900
	}
	return &CachedPayerAdapter{
		adapter: adapter,
		cache:   cache,
		ttl:     ttlSeconds,
		metrics: metrics,
	}
}

// PayerCacheKey is the cache key of a payer
func PayerCacheKey(id string) string {
	return fmt.Sprintf("payer:%s", id)
}

// GetByID retrieves a payer, serving from cache when possible
func (a *CachedPayerAdapter) GetByID(ctx context.Context, id string) (*entities.Payer, error) {
	cacheKey := PayerCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var payer entities.Payer
		if err := json.Unmarshal(cached, &payer); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "payer")
			return &payer, nil
		}
		log.Warn().Err(err).Str("payer_id", id).Msg("failed to unmarshal cached payer")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "payer")

	payer, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(payer); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, a.ttl); err != nil {
			log.Warn().Err(err).Str("payer_id", id).Msg("failed to cache payer")
		}
	}
	return payer, nil
}
