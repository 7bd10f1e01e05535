package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/pkg/config"
)

func TestNewCacheAndBus_Memory(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{Backend: "memory", MemoryCapacity: 16}}
	a := &app{}

	c, bus := newCacheAndBus(cfg, a)
	require.NotNil(t, c)
	require.NotNil(t, bus)
	assert.Len(t, a.closers, 1)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "payer:P1", []byte("{}"), 60))
	got, err := c.Get(ctx, "payer:P1")
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), got)

	sub, err := bus.Subscribe(ctx, providers.EventChannelEpisodes)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, providers.EventChannelEpisodes, &entities.ReconciliationEvent{ID: "e1"}))
	assert.Equal(t, "e1", (<-sub).ID)

	a.close()
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"reconcile", "fallback", "link", "status", "show-episode", "complete", "score", "show-score", "patterns", "warm", "listen"} {
		assert.True(t, names[want], want)
	}
}
