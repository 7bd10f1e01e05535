package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
)

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, providers.EventChannelEpisodes)
	require.NoError(t, err)

	event := entities.NewEpisodeEvent(entities.EventTypeEpisodeLinked, &entities.Episode{ID: "ep-1", ClaimID: "clm-1"})
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelEpisodes, event))

	select {
	case got := <-ch:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestMemoryEventBus_CancelClosesChannel(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelRiskScores)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestMemoryEventBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewMemoryEventBus()
	err := bus.Publish(context.Background(), providers.EventChannelEpisodes, &entities.ReconciliationEvent{ID: "e-1"})
	assert.NoError(t, err)
}
