package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
)

// CacheInvalidationService drops derived cache entries when episodes complete
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for episode events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelEpisodes)
	if err != nil {
		return fmt.Errorf("failed to subscribe to episode events: %w", err)
	}

	go s.processEvents(eventChan)
	observability.GetLogger().Info().Str("channel", providers.EventChannelEpisodes).Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	<-s.done
	observability.GetLogger().Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.ReconciliationEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.ReconciliationEvent) {
	if event.EventType != entities.EventTypeEpisodeCompleted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateClaim(ctx, event.ClaimID); err != nil {
		observability.GetLogger().Warn().Err(err).
			Str("event_id", event.ID).
			Str("claim_id", event.ClaimID).
			Msg("cache invalidation failed")
	}
}

// InvalidateClaim drops the claim's cached risk score and the episode counts
func (s *CacheInvalidationService) InvalidateClaim(ctx context.Context, claimID string) error {
	if err := s.cache.Delete(ctx, RiskScoreCacheKey(claimID)); err != nil {
		return fmt.Errorf("failed to invalidate risk score for %s: %w", claimID, err)
	}
	if err := s.cache.DeletePattern(ctx, episodeCountPattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", episodeCountPattern, err)
	}
	observability.GetLogger().Debug().Str("claim_id", claimID).Msg("invalidated claim caches")
	return nil
}
