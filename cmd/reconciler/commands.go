package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/claimrecon/internal/application/services"
	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
)

var (
	toleranceDays  int
	warmPayers     []string
	warmClaims     []string
	warmInterval   time.Duration
	listenChannels []string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile REMITTANCE_ID",
	Short: "Link a remittance by control number, falling back to payer and date",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		result, err := a.linking.ReconcileRemittance(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(result)
	}),
}

var fallbackCmd = &cobra.Command{
	Use:   "fallback REMITTANCE_ID",
	Short: "Link a remittance to claims of the same payer near its payment date",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		remittance, err := a.remittances.GetByID(ctx, args[0])
		if err != nil {
			return err
		}
		days := toleranceDays
		if days <= 0 {
			days = a.cfg.Matching.ToleranceDays
		}
		episodes, err := a.linking.LinkByPatientAndDate(ctx, remittance, days)
		if err != nil {
			return err
		}
		return printJSON(episodes)
	}),
}

var linkCmd = &cobra.Command{
	Use:   "link CLAIM_ID REMITTANCE_ID",
	Short: "Manually link a claim and a remittance",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		ep, err := a.linking.LinkManually(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(ep)
	}),
}

var statusCmd = &cobra.Command{
	Use:   "status EPISODE_ID STATUS",
	Short: "Move an episode to LINKED or COMPLETE",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		ep, err := a.linking.UpdateStatus(ctx, args[0], entities.EpisodeStatus(args[1]))
		if err != nil {
			return err
		}
		return printJSON(ep)
	}),
}

var showEpisodeCmd = &cobra.Command{
	Use:   "show-episode EPISODE_ID",
	Short: "Show an episode, read through the episode cache",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		ep, err := a.linking.GetEpisode(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(ep)
	}),
}

var completeCmd = &cobra.Command{
	Use:   "complete EPISODE_ID...",
	Short: "Complete episodes whose remittance has been processed",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		out := make([]*entities.Episode, 0, len(args))
		for _, id := range args {
			ep, err := a.linking.CompleteIfReady(ctx, id)
			if err != nil {
				return fmt.Errorf("episode %s: %w", id, err)
			}
			out = append(out, ep)
		}
		return printJSON(out)
	}),
}

var scoreCmd = &cobra.Command{
	Use:   "score CLAIM_ID...",
	Short: "Calculate denial risk scores",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		if len(args) == 1 {
			score, err := a.scoring.CalculateRiskScore(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(score)
		}

		result, err := a.scoring.CalculateRiskScores(ctx, args)
		if err != nil {
			return err
		}
		errs := make(map[string]string, len(result.Errors))
		for id, e := range result.Errors {
			errs[id] = e.Error()
		}
		return printJSON(map[string]interface{}{"scores": result.Scores, "errors": errs})
	}),
}

var showScoreCmd = &cobra.Command{
	Use:   "show-score CLAIM_ID",
	Short: "Show the cached or stored risk score of a claim",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		score, err := a.scoring.GetCachedRiskScore(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(score)
	}),
}

var patternsCmd = &cobra.Command{
	Use:   "patterns CLAIM_ID",
	Short: "List the payer denial patterns a claim matches",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, args []string) error {
		matches, err := a.patterns.AnalyzeClaimForPatterns(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(matches)
	}),
}

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Preload payer rules and stored risk scores into the cache",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		if warmInterval <= 0 {
			return printJSON(a.warming.WarmCache(ctx, warmPayers, warmClaims))
		}
		if err := a.warming.StartPeriodicWarming(ctx, warmInterval, warmPayers, warmClaims); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}),
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print reconciliation events and invalidate caches on completed episodes",
	RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
		invalidation := services.NewCacheInvalidationService(a.cache, a.bus)
		if err := invalidation.Start(); err != nil {
			return err
		}
		defer invalidation.Stop()

		merged := make(chan *entities.ReconciliationEvent)
		for _, channel := range listenChannels {
			sub, err := a.bus.Subscribe(ctx, channel)
			if err != nil {
				return err
			}
			go func(sub <-chan *entities.ReconciliationEvent) {
				for event := range sub {
					select {
					case merged <- event:
					case <-ctx.Done():
						return
					}
				}
			}(sub)
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case event := <-merged:
				if err := printJSON(event); err != nil {
					return err
				}
			}
		}
	}),
}

func init() {
	fallbackCmd.Flags().IntVar(&toleranceDays, "tolerance-days", 0, "Days on each side of the payment date (0 uses MATCH_TOLERANCE_DAYS)")
	warmCmd.Flags().StringSliceVar(&warmPayers, "payer", nil, "Payer IDs to preload")
	warmCmd.Flags().StringSliceVar(&warmClaims, "claim", nil, "Claim IDs whose stored risk score to preload")
	warmCmd.Flags().DurationVar(&warmInterval, "interval", 0, "Repeat warming on this interval until interrupted")
	listenCmd.Flags().StringSliceVar(&listenChannels, "channel",
		[]string{providers.EventChannelEpisodes, providers.EventChannelRiskScores}, "Event channels to print")

	rootCmd.AddCommand(reconcileCmd, fallbackCmd, linkCmd, statusCmd, showEpisodeCmd, completeCmd,
		scoreCmd, showScoreCmd, patternsCmd, warmCmd, listenCmd)
}

// withApp wires the services, cancels on SIGINT/SIGTERM and flushes events on exit
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, span := observability.StartSpan(ctx, "reconciler."+cmd.Name())
		defer span.End()
		return run(ctx, a, args)
	}
}
