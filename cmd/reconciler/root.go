package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/claimrecon/internal/adapters/cache"
	"github.com/zatekoja/claimrecon/internal/adapters/database"
	"github.com/zatekoja/claimrecon/internal/adapters/events"
	"github.com/zatekoja/claimrecon/internal/application/services"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/predictor"
	"github.com/zatekoja/claimrecon/internal/infrastructure/clients/redis"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
	"github.com/zatekoja/claimrecon/pkg/config"
)

var (
	cacheBackend string
	logEnv       string
)

var rootCmd = &cobra.Command{
	Use:           "reconciler",
	Short:         "Claim/remittance reconciliation and denial risk scoring",
	Long:          "Links payer remittances to submitted claims as episodes and computes per-claim denial risk scores.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cacheBackend, "cache", "", "Cache backend: redis or memory (overrides CACHE_BACKEND)")
	pf.StringVar(&logEnv, "env", "", "Environment name; development enables console logs (overrides APP_ENV)")
}

// app holds the wired services of one command invocation
type app struct {
	cfg         *config.Config
	remittances repositories.RemittanceRepository
	linking     *services.EpisodeLinkingService
	scoring     *services.RiskScoringService
	patterns    *services.PatternMatchingService
	warming     *services.CacheWarmingService
	cache       providers.CacheProvider
	bus         providers.EventBus
	publisher   *services.EventPublisher
	closers     []func()
}

// close flushes pending events and releases clients in reverse order
func (a *app) close() {
	if a.publisher != nil {
		a.publisher.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cacheBackend != "" {
		cfg.Cache.Backend = cacheBackend
	}
	if logEnv != "" {
		cfg.Log.Env = logEnv
	}
	observability.InitLogger(cfg.Log.ServiceName, cfg.Log.Env)
	logger := observability.GetLogger()

	a := &app{cfg: cfg}

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			a.closers = append(a.closers, func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(sctx); err != nil {
					logger.Warn().Err(err).Msg("error shutting down OpenTelemetry")
				}
			})
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		a.close()
		return nil, err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, func() { pgClient.Close() })

	a.cache, a.bus = newCacheAndBus(cfg, a)

	policy, err := services.ParseFallbackPolicy(cfg.Matching.FallbackPolicy)
	if err != nil {
		a.close()
		return nil, err
	}

	claims := database.NewClaimAdapter(pgClient)
	a.remittances = database.NewRemittanceAdapter(pgClient)
	payers := database.NewCachedPayerAdapter(database.NewPayerAdapter(pgClient), a.cache, cfg.Cache.PayerTTL, metrics)
	a.publisher = services.NewEventPublisher(a.bus, metrics)

	a.linking = services.NewEpisodeLinkingService(
		claims,
		a.remittances,
		database.NewEpisodeAdapter(pgClient),
		a.cache,
		a.publisher,
		metrics,
		services.LinkingOptions{
			ToleranceDays:   cfg.Matching.ToleranceDays,
			Policy:          policy,
			InvalidateAsync: cfg.Cache.InvalidateAsync,
			EpisodeTTL:      cfg.Cache.EpisodeTTL,
		},
	)

	a.patterns = services.NewPatternMatchingService(claims, database.NewDenialPatternAdapter(pgClient))
	a.scoring, err = services.NewRiskScoringService(
		claims,
		database.NewRiskScoreAdapter(pgClient),
		payers,
		a.patterns,
		predictor.New(&cfg.Predictor),
		a.cache,
		a.publisher,
		metrics,
		services.ScoringOptions{
			Weights:          cfg.Scoring.Weights,
			ScoreTTL:         cfg.Cache.RiskScoreTTL,
			BatchConcurrency: cfg.Scoring.BatchConcurrency,
			BatchReader: func(r repositories.ClaimRepository) repositories.ClaimRepository {
				return database.NewBatchedClaimReader(r, 0)
			},
		},
	)
	if err != nil {
		a.close()
		return nil, err
	}
	a.warming = services.NewCacheWarmingService(payers, a.scoring)

	return a, nil
}

// newCacheAndBus prefers Redis and falls back to in-process implementations
func newCacheAndBus(cfg *config.Config, a *app) (providers.CacheProvider, providers.EventBus) {
	logger := observability.GetLogger()

	if cfg.Cache.Backend == "redis" {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err == nil {
			bus := events.NewRedisEventBus(redisClient)
			a.closers = append(a.closers, func() { redisClient.Close() }, func() { bus.Close() })
			return cache.NewRedisAdapter(redisClient), bus
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory cache and event bus")
	}

	memCache, err := cache.NewMemoryAdapter(cfg.Cache.MemoryCapacity)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid memory cache capacity, using default")
		memCache, _ = cache.NewMemoryAdapter(10000)
	}
	bus := events.NewMemoryEventBus()
	a.closers = append(a.closers, func() { bus.Close() })
	return memCache, bus
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
