package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("SCORE_WEIGHT_CODING")
	os.Unsetenv("MATCH_TOLERANCE_DAYS")
	os.Unsetenv("SCORING_CONFIG_FILE")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Matching.ToleranceDays)
	assert.Equal(t, "link_all", cfg.Matching.FallbackPolicy)
	assert.Equal(t, 0.25, cfg.Scoring.Weights.Coding)
	assert.Equal(t, 0.20, cfg.Scoring.Weights.Payer)
	assert.Equal(t, 0.15, cfg.Scoring.Weights.Historical)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 2*time.Second, cfg.Predictor.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	os.Setenv("MATCH_TOLERANCE_DAYS", "14")
	os.Setenv("SCORE_WEIGHT_CODING", "0.4")
	os.Setenv("PREDICTOR_TIMEOUT", "750ms")
	defer func() {
		os.Unsetenv("MATCH_TOLERANCE_DAYS")
		os.Unsetenv("SCORE_WEIGHT_CODING")
		os.Unsetenv("PREDICTOR_TIMEOUT")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Matching.ToleranceDays)
	assert.Equal(t, 0.4, cfg.Scoring.Weights.Coding)
	assert.Equal(t, 750*time.Millisecond, cfg.Predictor.Timeout)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	os.Setenv("MATCH_TOLERANCE_DAYS", "thirty")
	defer os.Unsetenv("MATCH_TOLERANCE_DAYS")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Matching.ToleranceDays)
}

func TestScoringConfig_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	content := "weights:\n  coding: 0.30\n  pattern: 0.15\nbatch_concurrency: 2\nunknown_key: ignored\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	sc := ScoringConfig{Weights: WeightsConfig{Payer: 0.2, Coding: 0.25, Documentation: 0.2, Historical: 0.15, Pattern: 0.2}}
	require.NoError(t, sc.LoadFromFile(path))

	assert.Equal(t, 0.30, sc.Weights.Coding)
	assert.Equal(t, 0.15, sc.Weights.Pattern)
	assert.Equal(t, 0.2, sc.Weights.Payer)
	assert.Equal(t, 2, sc.BatchConcurrency)
}

func TestScoringConfig_LoadFromFileMissing(t *testing.T) {
	sc := ScoringConfig{}
	err := sc.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWeightsConfig_Validate(t *testing.T) {
	w := WeightsConfig{Payer: 0.2, Coding: 0.25, Documentation: 0.2, Historical: 0.15, Pattern: 0.2}
	assert.NoError(t, w.Validate())
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)

	w.Coding = -0.1
	assert.True(t, apperrors.IsValidation(w.Validate()))

	w.Coding = math.NaN()
	assert.Error(t, w.Validate())
}

func TestLoad_MalformedWeightIsValidationError(t *testing.T) {
	t.Setenv("SCORE_WEIGHT_CODING", "abc")

	cfg, err := Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "SCORE_WEIGHT_CODING")
}

func TestLoad_NegativeWeightIsValidationError(t *testing.T) {
	t.Setenv("SCORE_WEIGHT_PATTERN", "-0.2")

	_, err := Load()
	assert.True(t, apperrors.IsValidation(err))
}
