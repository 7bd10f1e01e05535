package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_GlobalNoopProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordEpisodeLinked(ctx, m, "control_number")
		RecordRiskScore(ctx, m, "HIGH", 12*time.Millisecond)
		RecordCacheHit(ctx, m, "risk_score")
	})
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordEpisodeLinked(ctx, nil, "manual")
		RecordEpisodeCompleted(ctx, nil)
		RecordRiskScore(ctx, nil, "LOW", time.Millisecond)
		RecordDegraded(ctx, nil, "historical_predictor")
		RecordCacheMiss(ctx, nil, "payer")
		RecordNotificationFailure(ctx, nil, "episode_linked")
	})
}

func TestLoggerFromContext_WithoutSpan(t *testing.T) {
	InitLogger("claim-reconciliation-test", "test")
	logger := LoggerFromContext(context.Background())
	assert.NotNil(t, logger)
}
