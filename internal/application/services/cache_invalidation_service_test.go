package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/claimrecon/internal/adapters/cache"
	"github.com/zatekoja/claimrecon/internal/adapters/events"
	"github.com/zatekoja/claimrecon/internal/application/services"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
)

func TestCacheInvalidationService_OnEpisodeCompleted(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewMemoryAdapter(16)
	require.NoError(t, err)
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	require.NoError(t, store.Set(ctx, services.RiskScoreCacheKey("clm-1"), []byte("{}"), 60))
	require.NoError(t, store.Set(ctx, services.RiskScoreCacheKey("clm-2"), []byte("{}"), 60))
	require.NoError(t, store.Set(ctx, "count:episode:linked", []byte("4"), 60))

	service := services.NewCacheInvalidationService(store, bus)
	require.NoError(t, service.Start())
	defer service.Stop()

	linked := entities.NewEpisodeEvent(entities.EventTypeEpisodeLinked, &entities.Episode{ID: "ep-2", ClaimID: "clm-2"})
	require.NoError(t, bus.Publish(ctx, providers.EventChannelEpisodes, linked))

	completed := entities.NewEpisodeEvent(entities.EventTypeEpisodeCompleted, &entities.Episode{ID: "ep-1", ClaimID: "clm-1"})
	require.NoError(t, bus.Publish(ctx, providers.EventChannelEpisodes, completed))

	assert.Eventually(t, func() bool {
		exists, _ := store.Exists(ctx, services.RiskScoreCacheKey("clm-1"))
		return !exists
	}, time.Second, 10*time.Millisecond)

	exists, _ := store.Exists(ctx, "count:episode:linked")
	assert.False(t, exists)
	exists, _ = store.Exists(ctx, services.RiskScoreCacheKey("clm-2"))
	assert.True(t, exists)
}

func TestCacheInvalidationService_InvalidateClaimPropagatesErrors(t *testing.T) {
	service := services.NewCacheInvalidationService(failingCache{}, events.NewMemoryEventBus())
	assert.Error(t, service.InvalidateClaim(context.Background(), "clm-1"))
}
