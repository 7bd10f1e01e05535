package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

const defaultPublishTimeout = 5 * time.Second

// EventPublisher dispatches reconciliation events without blocking the caller.
// Publish failures are logged and counted, never returned.
type EventPublisher struct {
	bus     providers.EventBus
	timeout time.Duration
	metrics *observability.Metrics
	wg      sync.WaitGroup
}

// NewEventPublisher creates a publisher over bus. A nil bus disables publishing.
func NewEventPublisher(bus providers.EventBus, metrics *observability.Metrics) *EventPublisher {
	return &EventPublisher{
		bus:     bus,
		timeout: defaultPublishTimeout,
		metrics: metrics,
	}
}

// Publish sends the event on its channel in the background
func (p *EventPublisher) Publish(ctx context.Context, event *entities.ReconciliationEvent) {
	if p == nil || p.bus == nil || event == nil {
		return
	}

	channel := providers.ChannelFor(event.EventType)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()

		if err := p.bus.Publish(pubCtx, channel, event); err != nil {
			notifyErr := apperrors.NewNotificationError(fmt.Sprintf("failed to publish %s", event.EventType), err)
			observability.LoggerFromContext(ctx).Warn().Err(notifyErr).
				Str("event_id", event.ID).
				Str("claim_id", event.ClaimID).
				Str("channel", channel).
				Msg("event publish failed")
			observability.RecordNotificationFailure(pubCtx, p.metrics, string(event.EventType))
		}
	}()
}

// Wait blocks until in-flight publishes finish
func (p *EventPublisher) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
