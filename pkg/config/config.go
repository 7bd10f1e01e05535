package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Log       LogConfig
	OTEL      OTELConfig
	Matching  MatchingConfig
	Scoring   ScoringConfig
	Predictor PredictorConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects the cache backend and its TTLs (seconds)
type CacheConfig struct {
	Backend         string // "redis" or "memory"
	MemoryCapacity  int
	EpisodeTTL      int
	RiskScoreTTL    int
	PayerTTL        int
	InvalidateAsync bool
}

// LogConfig holds logger configuration
type LogConfig struct {
	ServiceName string
	Env         string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// MatchingConfig holds episode linking configuration
type MatchingConfig struct {
	ToleranceDays  int
	FallbackPolicy string // "link_all", "unique_only" or "closest"
}

// ScoringConfig holds risk scoring configuration
type ScoringConfig struct {
	Weights          WeightsConfig `yaml:"weights"`
	BatchConcurrency int           `yaml:"batch_concurrency"`
	ConfigFile       string        `yaml:"-"`
}

// WeightsConfig holds the component weights of the overall risk score
type WeightsConfig struct {
	Payer         float64 `yaml:"payer"`
	Coding        float64 `yaml:"coding"`
	Documentation float64 `yaml:"documentation"`
	Historical    float64 `yaml:"historical"`
	Pattern       float64 `yaml:"pattern"`
}

// Sum returns the total of the five weights
func (w WeightsConfig) Sum() float64 {
	return w.Payer + w.Coding + w.Documentation + w.Historical + w.Pattern
}

// Validate rejects negative or NaN weights. A set that does not sum to 1 is
// accepted; callers warn about it.
func (w WeightsConfig) Validate() error {
	named := map[string]float64{
		"payer":         w.Payer,
		"coding":        w.Coding,
		"documentation": w.Documentation,
		"historical":    w.Historical,
		"pattern":       w.Pattern,
	}
	for name, v := range named {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return apperrors.NewValidationError(fmt.Sprintf("invalid %s weight %v", name, v))
		}
	}
	return nil
}

// PredictorConfig holds the historical risk predictor client configuration
type PredictorConfig struct {
	URL              string
	Timeout          time.Duration
	FailureThreshold int
	OpenTimeout      time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "claim_reconciliation"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Backend:         getEnv("CACHE_BACKEND", "redis"),
			MemoryCapacity:  getEnvAsInt("CACHE_MEMORY_CAPACITY", 10000),
			EpisodeTTL:      getEnvAsInt("CACHE_EPISODE_TTL", 300),
			RiskScoreTTL:    getEnvAsInt("CACHE_RISK_SCORE_TTL", 3600),
			PayerTTL:        getEnvAsInt("CACHE_PAYER_TTL", 900),
			InvalidateAsync: getEnvAsBool("CACHE_INVALIDATE_ASYNC", false),
		},
		Log: LogConfig{
			ServiceName: getEnv("SERVICE_NAME", "claim-reconciliation"),
			Env:         getEnv("APP_ENV", "development"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "claim-reconciliation"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Matching: MatchingConfig{
			ToleranceDays:  getEnvAsInt("MATCH_TOLERANCE_DAYS", 30),
			FallbackPolicy: getEnv("MATCH_FALLBACK_POLICY", "link_all"),
		},
		Scoring: ScoringConfig{
			BatchConcurrency: getEnvAsInt("SCORE_BATCH_CONCURRENCY", 8),
			ConfigFile:       getEnv("SCORING_CONFIG_FILE", ""),
		},
		Predictor: PredictorConfig{
			URL:              getEnv("PREDICTOR_URL", ""),
			Timeout:          getEnvAsDuration("PREDICTOR_TIMEOUT", 2*time.Second),
			FailureThreshold: getEnvAsInt("PREDICTOR_FAILURE_THRESHOLD", 5),
			OpenTimeout:      getEnvAsDuration("PREDICTOR_OPEN_TIMEOUT", 30*time.Second),
		},
	}

	weights := []struct {
		key string
		def float64
		dst *float64
	}{
		{"SCORE_WEIGHT_PAYER", 0.20, &cfg.Scoring.Weights.Payer},
		{"SCORE_WEIGHT_CODING", 0.25, &cfg.Scoring.Weights.Coding},
		{"SCORE_WEIGHT_DOCUMENTATION", 0.20, &cfg.Scoring.Weights.Documentation},
		{"SCORE_WEIGHT_HISTORICAL", 0.15, &cfg.Scoring.Weights.Historical},
		{"SCORE_WEIGHT_PATTERN", 0.20, &cfg.Scoring.Weights.Pattern},
	}
	for _, w := range weights {
		v, err := getEnvAsWeight(w.key, w.def)
		if err != nil {
			return nil, err
		}
		*w.dst = v
	}

	if cfg.Scoring.ConfigFile != "" {
		if err := cfg.Scoring.LoadFromFile(cfg.Scoring.ConfigFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// scoringFile is the on-disk YAML structure. Absent keys keep their current value.
type scoringFile struct {
	Weights struct {
		Payer         *float64 `yaml:"payer"`
		Coding        *float64 `yaml:"coding"`
		Documentation *float64 `yaml:"documentation"`
		Historical    *float64 `yaml:"historical"`
		Pattern       *float64 `yaml:"pattern"`
	} `yaml:"weights"`
	BatchConcurrency *int `yaml:"batch_concurrency"`
}

// LoadFromFile reads a YAML scoring file and merges its values into ScoringConfig.
func (c *ScoringConfig) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scoring config file: %w", err)
	}

	var sf scoringFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse scoring config file: %w", err)
	}

	mergeFloat(&c.Weights.Payer, sf.Weights.Payer)
	mergeFloat(&c.Weights.Coding, sf.Weights.Coding)
	mergeFloat(&c.Weights.Documentation, sf.Weights.Documentation)
	mergeFloat(&c.Weights.Historical, sf.Weights.Historical)
	mergeFloat(&c.Weights.Pattern, sf.Weights.Pattern)
	if sf.BatchConcurrency != nil {
		c.BatchConcurrency = *sf.BatchConcurrency
	}
	return nil
}

func mergeFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsWeight fails on values that do not parse; a bad weight must not
// silently fall back to the default
func getEnvAsWeight(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid %s %q: not a number", key, value))
	}
	return floatVal, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
