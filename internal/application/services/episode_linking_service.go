package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/claimrecon/internal/domain/entities"
	"github.com/zatekoja/claimrecon/internal/domain/providers"
	"github.com/zatekoja/claimrecon/internal/domain/repositories"
	"github.com/zatekoja/claimrecon/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/claimrecon/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultToleranceDays is the fallback matching window on each side of the payment date
const DefaultToleranceDays = 30

// FallbackPolicy decides which candidates the payer/date fallback links
type FallbackPolicy string

const (
	// FallbackLinkAll links every candidate
	FallbackLinkAll FallbackPolicy = "link_all"
	// FallbackUniqueOnly links only when exactly one candidate exists
	FallbackUniqueOnly FallbackPolicy = "unique_only"
	// FallbackClosest links the candidate whose service date is nearest the payment date
	FallbackClosest FallbackPolicy = "closest"
)

// ParseFallbackPolicy validates a policy name. Empty selects link_all.
func ParseFallbackPolicy(name string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return FallbackLinkAll, nil
	case FallbackLinkAll, FallbackUniqueOnly, FallbackClosest:
		return p, nil
	}
	return "", apperrors.NewValidationError(fmt.Sprintf("unknown fallback policy %q", name))
}

// LinkingOptions configures the EpisodeLinkingService
type LinkingOptions struct {
	ToleranceDays   int
	Policy          FallbackPolicy
	InvalidateAsync bool
	// EpisodeTTL is the cache lifetime of episode:{id} in seconds
	EpisodeTTL      int
}

// ReconcileResult is the outcome of reconciling one remittance
type ReconcileResult struct {
	Episodes []*entities.Episode  `json:"episodes"`
	// Method is empty when nothing was linked
	Method   entities.MatchMethod `json:"method,omitempty"`
}

// EpisodeLinkingService links remittances to claims as episodes
type EpisodeLinkingService struct {
	claims      repositories.ClaimRepository
	remittances repositories.RemittanceRepository
	episodes    repositories.EpisodeRepository
	cache       providers.CacheProvider
	publisher   *EventPublisher
	metrics     *observability.Metrics
	opts        LinkingOptions
	now         func() time.Time
}

// NewEpisodeLinkingService creates a new episode linking service
func NewEpisodeLinkingService(
	claims repositories.ClaimRepository,
	remittances repositories.RemittanceRepository,
	episodes repositories.EpisodeRepository,
	cache providers.CacheProvider,
	publisher *EventPublisher,
	metrics *observability.Metrics,
	opts LinkingOptions,
) *EpisodeLinkingService {
	if opts.ToleranceDays <= 0 {
		opts.ToleranceDays = DefaultToleranceDays
	}
	if opts.Policy == "" {
		opts.Policy = FallbackLinkAll
	}
	if opts.EpisodeTTL <= 0 {
		opts.EpisodeTTL = 300
	}
	return &EpisodeLinkingService{
		claims:      claims,
		remittances: remittances,
		episodes:    episodes,
		cache:       cache,
		publisher:   publisher,
		metrics:     metrics,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// LinkByControlNumber links the remittance to every claim carrying its claim
// control number. No reference or no match yields an empty result.
func (s *EpisodeLinkingService) LinkByControlNumber(ctx context.Context, remittance *entities.Remittance) ([]*entities.Episode, error) {
	ctx, span := observability.StartSpan(ctx, "EpisodeLinkingService.LinkByControlNumber",
		attribute.String("remittance.id", remittance.ID))
	defer span.End()

	episodes := []*entities.Episode{}
	if !remittance.HasClaimReference() {
		return episodes, nil
	}

	claims, err := s.claims.FindByControlNumber(ctx, strings.TrimSpace(*remittance.ClaimControlNumber))
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to find claims by control number: %w", err)
	}

	for _, claim := range claims {
		ep, err := s.linkPair(ctx, claim, remittance, entities.MatchMethodControlNumber)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// LinkByPatientAndDate links the remittance to claims of the same payer whose
// service date lies within toleranceDays of the payment date. A non-positive
// tolerance uses the configured default.
func (s *EpisodeLinkingService) LinkByPatientAndDate(ctx context.Context, remittance *entities.Remittance, toleranceDays int) ([]*entities.Episode, error) {
	ctx, span := observability.StartSpan(ctx, "EpisodeLinkingService.LinkByPatientAndDate",
		attribute.String("remittance.id", remittance.ID))
	defer span.End()

	if !remittance.HasPayer() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("remittance %s has no payer", remittance.ID))
	}
	if remittance.PaymentDate == nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("remittance %s has no payment date", remittance.ID))
	}
	if toleranceDays <= 0 {
		toleranceDays = s.opts.ToleranceDays
	}

	// the window spans whole days; the time of day of the payment is ignored
	paid := *remittance.PaymentDate
	paymentDay := time.Date(paid.Year(), paid.Month(), paid.Day(), 0, 0, 0, 0, paid.Location())
	start := paymentDay.AddDate(0, 0, -toleranceDays)
	end := paymentDay.AddDate(0, 0, toleranceDays+1).Add(-time.Nanosecond)

	candidates, err := s.claims.FindByPayerAndServiceDateRange(ctx, strings.TrimSpace(*remittance.PayerID), start, end)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to find fallback candidates: %w", err)
	}

	inWindow := make([]*entities.Claim, 0, len(candidates))
	for _, c := range candidates {
		if c.ServiceDate == nil || c.ServiceDate.Before(start) || c.ServiceDate.After(end) {
			continue
		}
		inWindow = append(inWindow, c)
	}

	selected := s.applyPolicy(ctx, remittance, inWindow)
	span.SetAttributes(
		attribute.Int("fallback.candidates", len(inWindow)),
		attribute.Int("fallback.selected", len(selected)),
	)

	episodes := make([]*entities.Episode, 0, len(selected))
	for _, claim := range selected {
		ep, err := s.linkPair(ctx, claim, remittance, entities.MatchMethodPayerDate)
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

func (s *EpisodeLinkingService) applyPolicy(ctx context.Context, remittance *entities.Remittance, candidates []*entities.Claim) []*entities.Claim {
	switch s.opts.Policy {
	case FallbackUniqueOnly:
		if len(candidates) != 1 {
			if len(candidates) > 1 {
				observability.LoggerFromContext(ctx).Info().
					Str("remittance_id", remittance.ID).
					Int("candidates", len(candidates)).
					Msg("ambiguous fallback match skipped")
			}
			return nil
		}
		return candidates
	case FallbackClosest:
		if len(candidates) == 0 {
			return nil
		}
		best := candidates[0]
		bestDistance := absDuration(best.ServiceDate.Sub(*remittance.PaymentDate))
		for _, c := range candidates[1:] {
			if d := absDuration(c.ServiceDate.Sub(*remittance.PaymentDate)); d < bestDistance {
				best, bestDistance = c, d
			}
		}
		return []*entities.Claim{best}
	}
	return candidates
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// LinkManually links an explicit claim and remittance pair
func (s *EpisodeLinkingService) LinkManually(ctx context.Context, claimID, remittanceID string) (*entities.Episode, error) {
	ctx, span := observability.StartSpan(ctx, "EpisodeLinkingService.LinkManually",
		attribute.String("claim.id", claimID),
		attribute.String("remittance.id", remittanceID))
	defer span.End()

	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	remittance, err := s.remittances.GetByID(ctx, remittanceID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return s.linkPair(ctx, claim, remittance, entities.MatchMethodManual)
}

// GetEpisode returns an episode through the episode:{id} cache
func (s *EpisodeLinkingService) GetEpisode(ctx context.Context, episodeID string) (*entities.Episode, error) {
	key := EpisodeCacheKey(episodeID)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var ep entities.Episode
			if err := json.Unmarshal(data, &ep); err == nil {
				observability.RecordCacheHit(ctx, s.metrics, "episode")
				return &ep, nil
			}
		}
		observability.RecordCacheMiss(ctx, s.metrics, "episode")
	}

	ep, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, err := json.Marshal(ep); err == nil {
			if err := s.cache.Set(ctx, key, data, s.opts.EpisodeTTL); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("episode_id", episodeID).Msg("failed to cache episode")
			}
		}
	}
	return ep, nil
}

// UpdateStatus moves an episode forward through PENDING, LINKED, COMPLETE
func (s *EpisodeLinkingService) UpdateStatus(ctx context.Context, episodeID string, status entities.EpisodeStatus) (*entities.Episode, error) {
	ctx, span := observability.StartSpan(ctx, "EpisodeLinkingService.UpdateStatus",
		attribute.String("episode.id", episodeID),
		attribute.String("episode.status", string(status)))
	defer span.End()

	if !status.IsValid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown episode status %q", status))
	}

	ep, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	if !ep.Status.CanTransitionTo(status) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("episode %s cannot move from %s to %s", ep.ID, ep.Status, status))
	}
	if ep.Status == status {
		return ep, nil
	}

	eventType := entities.EventTypeEpisodeLinked
	if status == entities.EpisodeStatusComplete {
		eventType = entities.EventTypeEpisodeCompleted
		if ep.LinkedAt == nil {
			now := s.now()
			ep.LinkedAt = &now
		}
		// claim first, so a failed episode write can be retried
		claimStatus := entities.ClaimStatusPaid
		if ep.DenialCount > 0 {
			claimStatus = entities.ClaimStatusDenied
		}
		if err := s.claims.UpdateStatus(ctx, ep.ClaimID, claimStatus); err != nil {
			observability.RecordError(span, err)
			return nil, fmt.Errorf("failed to update claim status: %w", err)
		}
	}

	ep.Status = status
	if err := s.episodes.Update(ctx, ep); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to update episode: %w", err)
	}

	s.invalidate(ctx, ep.ID)
	if status == entities.EpisodeStatusComplete {
		observability.RecordEpisodeCompleted(ctx, s.metrics)
	}
	s.publisher.Publish(ctx, entities.NewEpisodeEvent(eventType, ep))
	return ep, nil
}

// CompleteIfReady completes the episode once its remittance is processed.
// Otherwise the episode is returned unchanged.
func (s *EpisodeLinkingService) CompleteIfReady(ctx context.Context, episodeID string) (*entities.Episode, error) {
	ep, err := s.episodes.GetByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if ep.Status == entities.EpisodeStatusComplete || ep.RemittanceID == nil {
		return ep, nil
	}

	remittance, err := s.remittances.GetByID(ctx, *ep.RemittanceID)
	if err != nil {
		return nil, err
	}
	if !remittance.IsProcessed() {
		return ep, nil
	}
	return s.UpdateStatus(ctx, ep.ID, entities.EpisodeStatusComplete)
}

// ReconcileRemittance links a stored remittance, trying the control number
// first and the payer/date fallback when that finds nothing.
func (s *EpisodeLinkingService) ReconcileRemittance(ctx context.Context, remittanceID string) (*ReconcileResult, error) {
	remittance, err := s.remittances.GetByID(ctx, remittanceID)
	if err != nil {
		return nil, err
	}

	episodes, err := s.LinkByControlNumber(ctx, remittance)
	if err != nil {
		return nil, err
	}
	if len(episodes) > 0 {
		return &ReconcileResult{Episodes: episodes, Method: entities.MatchMethodControlNumber}, nil
	}

	if !remittance.HasPayer() || remittance.PaymentDate == nil {
		return &ReconcileResult{Episodes: episodes}, nil
	}

	episodes, err = s.LinkByPatientAndDate(ctx, remittance, s.opts.ToleranceDays)
	if err != nil {
		return nil, err
	}
	result := &ReconcileResult{Episodes: episodes}
	if len(episodes) > 0 {
		result.Method = entities.MatchMethodPayerDate
	}
	return result, nil
}

// linkPair idempotently creates the LINKED episode of a claim/remittance pair
func (s *EpisodeLinkingService) linkPair(ctx context.Context, claim *entities.Claim, remittance *entities.Remittance, method entities.MatchMethod) (*entities.Episode, error) {
	now := s.now()
	remittanceID := remittance.ID
	candidate := &entities.Episode{
		ClaimID:         claim.ID,
		RemittanceID:    &remittanceID,
		Status:          entities.EpisodeStatusLinked,
		MatchMethod:     method,
		LinkedAt:        &now,
		PaymentAmount:   remittance.PaymentAmount,
		DenialCount:     len(remittance.DenialReasons),
		AdjustmentCount: len(remittance.AdjustmentReasons),
	}

	ep, created, err := s.episodes.CreateIfAbsent(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("failed to link claim %s to remittance %s: %w", claim.ID, remittance.ID, err)
	}
	if !created {
		return ep, nil
	}

	observability.LoggerFromContext(ctx).Info().
		Str("episode_id", ep.ID).
		Str("claim_id", claim.ID).
		Str("remittance_id", remittance.ID).
		Str("match_method", string(method)).
		Msg("episode linked")

	s.invalidate(ctx, ep.ID)
	observability.RecordEpisodeLinked(ctx, s.metrics, string(method))
	s.publisher.Publish(ctx, entities.NewEpisodeEvent(entities.EventTypeEpisodeLinked, ep))
	return ep, nil
}

// invalidate drops the cached episode and every aggregate count
func (s *EpisodeLinkingService) invalidate(ctx context.Context, episodeID string) {
	if s.cache == nil {
		return
	}
	if s.opts.InvalidateAsync {
		go s.invalidateKeys(context.WithoutCancel(ctx), episodeID)
		return
	}
	s.invalidateKeys(ctx, episodeID)
}

func (s *EpisodeLinkingService) invalidateKeys(ctx context.Context, episodeID string) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	logger := observability.LoggerFromContext(ctx)
	key := EpisodeCacheKey(episodeID)
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate episode cache")
	}
	for _, pattern := range []string{key + "*", episodeCountPattern} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("failed to invalidate cache pattern")
		}
	}
}
