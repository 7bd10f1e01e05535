package providers

import (
	"context"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ReconciliationEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ReconciliationEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// Event channels
const (
	EventChannelEpisodes   = "reconciliation:episodes"
	EventChannelRiskScores = "reconciliation:risk_scores"
)

// ChannelFor returns the channel an event type is published on
func ChannelFor(eventType entities.ReconciliationEventType) string {
	if eventType == entities.EventTypeRiskScoreCalculated {
		return EventChannelRiskScores
	}
	return EventChannelEpisodes
}
